package sqlstore

import (
	"context"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/contexor/contexor/pkg/utils"
)

const (
	DRIVER_POSTGRES = "postgres"
	DRIVER_SQLITE   = "sqlite"
)

type SqlCommons interface {
	GetTable(...interface{}) string
}

type ConnectConfig interface {
	DriverName() string
	FormatDSN() string
}

type SqlProvider struct {
	master   *sqlx.DB
	replicas []*sqlx.DB
	driver   string
	builder  sq.StatementBuilderType
}

func (s *SqlProvider) GetTxFromCtx(ctx context.Context) *sqlx.Tx {
	if driver, ok := ctx.Value(TransactionKey{}).(*sqlx.Tx); ok {
		return driver
	}
	return nil
}

func (s *SqlProvider) GetMaster() *sqlx.DB {
	return s.master
}

func (s *SqlProvider) GetReplica() *sqlx.DB {
	return s.replicas[utils.Random(0, len(s.replicas)-1)]
}

func (s *SqlProvider) Driver() string {
	return s.driver
}

// Builder 按方言设置占位符的 squirrel 构造器
func (s *SqlProvider) Builder() sq.StatementBuilderType {
	return s.builder
}

type TransactionKey struct{}

func (s *SqlProvider) Transaction(ctx context.Context, next func(ctx context.Context) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, ok := ctx.Value(TransactionKey{}).(*sqlx.Tx); ok {
		return next(ctx)
	}

	var tx *sqlx.Tx
	if tx, err = s.GetMaster().BeginTxx(ctx, nil); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil || err != nil {
			slog.Error("Transaction rollbacked", slog.Any("recover", r), slog.Any("error", err))
			_ = tx.Rollback()
			if r != nil {
				panic(r)
			}
		}
	}()

	if err = next(context.WithValue(ctx, TransactionKey{}, tx)); err != nil {
		return err
	}

	return tx.Commit()
}

// 建立数据库连接
func (s *SqlProvider) initConnection(conf ConnectConfig) (*sqlx.DB, error) {
	engine, err := sqlx.Open(conf.DriverName(), conf.FormatDSN())
	if err != nil {
		return nil, err
	}
	if conf.DriverName() == DRIVER_SQLITE {
		// sqlite 单写者
		engine.SetMaxOpenConns(1)
	}
	return engine, nil
}

func NewProvider(m ConnectConfig, s ...ConnectConfig) (*SqlProvider, error) {
	provider := &SqlProvider{
		driver: m.DriverName(),
	}

	switch provider.driver {
	case DRIVER_SQLITE:
		provider.builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
		// sqlite 只有一个库文件，不区分主从
		s = nil
	default:
		provider.builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	engine, err := provider.initConnection(m)
	if err != nil {
		return nil, err
	}
	provider.master = engine

	for _, v := range s {
		slave, err := provider.initConnection(v)
		if err != nil {
			return nil, err
		}
		provider.replicas = append(provider.replicas, slave)
	}

	if len(provider.replicas) == 0 {
		provider.replicas = append(provider.replicas, engine)
	}

	return provider, nil
}

func MustSetupProvider(m ConnectConfig, s ...ConnectConfig) *SqlProvider {
	provider, err := NewProvider(m, s...)
	if err != nil {
		panic(err)
	}
	return provider
}

func (s *SqlProvider) GetTx() (*sqlx.Tx, error) {
	return s.GetMaster().Beginx()
}

func (s *SqlProvider) Close() error {
	for _, r := range s.replicas {
		if r != s.master {
			_ = r.Close()
		}
	}
	return s.master.Close()
}
