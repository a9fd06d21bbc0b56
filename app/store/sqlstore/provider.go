package sqlstore

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"reflect"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/contexor/contexor/app/store"
	"github.com/contexor/contexor/pkg/register"
	"github.com/contexor/contexor/pkg/sqlstore"
	"github.com/contexor/contexor/pkg/types"
)

//go:embed migrations
var CreateTableFiles embed.FS

type Provider struct {
	*sqlstore.SqlProvider
	stores *Stores
}

type Stores struct {
	store.UsageRecordStore
	store.UsageLimitStore
	store.GenerationJobStore
	store.ContentStore
	store.ContentVersionStore
	store.AuditLogStore
}

type RegisterKey struct{}

// New 创建 Provider 并装配所有通过 register 注册的 store
func New(m sqlstore.ConnectConfig, s ...sqlstore.ConnectConfig) (*Provider, error) {
	sp, err := sqlstore.NewProvider(m, s...)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		SqlProvider: sp,
		stores:      &Stores{},
	}
	register.Apply(RegisterKey{}, p)
	if err = p.checkStores(); err != nil {
		return nil, err
	}
	return p, nil
}

func MustSetup(m sqlstore.ConnectConfig, s ...sqlstore.ConnectConfig) func() *Provider {
	p, err := New(m, s...)
	if err != nil {
		panic(err)
	}

	return func() *Provider {
		return p
	}
}

// Install 按文件名顺序执行当前方言下尚未执行的迁移文件
func (p *Provider) Install() error {
	if err := p.ensureMigrationTable(); err != nil {
		return err
	}

	dir := path.Join("migrations", p.Driver())
	files, err := fs.ReadDir(CreateTableFiles, dir)
	if err != nil {
		return fmt.Errorf("no migrations for driver %s, %w", p.Driver(), err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		executed, err := p.isFileExecuted(file.Name())
		if err != nil {
			return err
		}
		if executed {
			continue
		}

		raw, err := CreateTableFiles.ReadFile(path.Join(dir, file.Name()))
		if err != nil {
			return err
		}

		if _, err = p.GetMaster().Exec(string(raw)); err != nil {
			return fmt.Errorf("failed to execute %s, %w", file.Name(), err)
		}

		if err = p.markFileExecuted(file.Name()); err != nil {
			return err
		}
		slog.Info("migration executed", slog.String("file", file.Name()), slog.String("driver", p.Driver()))
	}
	return nil
}

func (p *Provider) ensureMigrationTable() error {
	_, err := p.GetMaster().Exec(`
CREATE TABLE IF NOT EXISTS ` + types.TABLE_SCHEMA_MIGRATION.Name() + ` (
    filename VARCHAR(255) PRIMARY KEY,
    executed_at BIGINT NOT NULL
);`)
	return err
}

func (p *Provider) isFileExecuted(filename string) (bool, error) {
	query, args, err := p.Builder().Select("COUNT(*)").From(types.TABLE_SCHEMA_MIGRATION.Name()).
		Where(sq.Eq{"filename": filename}).ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}

	var count int
	if err = p.GetMaster().Get(&count, query, args...); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Provider) markFileExecuted(filename string) error {
	query, args, err := p.Builder().Insert(types.TABLE_SCHEMA_MIGRATION.Name()).
		Columns("filename", "executed_at").Values(filename, time.Now().Unix()).ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}
	_, err = p.GetMaster().Exec(query, args...)
	return err
}

// checkStores 所有 store 都必须已注册
func (p *Provider) checkStores() error {
	val := reflect.ValueOf(p.stores).Elem()
	for i := 0; i < val.NumField(); i++ {
		if val.Field(i).IsNil() {
			return fmt.Errorf("store %s not registered", val.Type().Field(i).Name)
		}
	}
	return nil
}

func (p *Provider) UsageRecordStore() store.UsageRecordStore {
	return p.stores.UsageRecordStore
}

func (p *Provider) UsageLimitStore() store.UsageLimitStore {
	return p.stores.UsageLimitStore
}

func (p *Provider) GenerationJobStore() store.GenerationJobStore {
	return p.stores.GenerationJobStore
}

func (p *Provider) ContentStore() store.ContentStore {
	return p.stores.ContentStore
}

func (p *Provider) ContentVersionStore() store.ContentVersionStore {
	return p.stores.ContentVersionStore
}

func (p *Provider) AuditLogStore() store.AuditLogStore {
	return p.stores.AuditLogStore
}
