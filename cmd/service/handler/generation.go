package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/contexor/contexor/app/logic/v1"
	"github.com/contexor/contexor/app/response"
	"github.com/contexor/contexor/pkg/types"
	"github.com/contexor/contexor/pkg/utils"
)

type SubmitGenerationRequest struct {
	Kind                   types.JobKind `json:"kind" binding:"required"`
	Topic                  string        `json:"topic" binding:"required"`
	Tone                   string        `json:"tone"`
	Audience               string        `json:"audience"`
	Keywords               string        `json:"keywords"`
	MinWords               int           `json:"min_words"`
	AdditionalInstructions string        `json:"additional_instructions"`
	Model                  string        `json:"model"`
}

type SubmitGenerationResponse struct {
	JobID string `json:"job_id"`
}

// SubmitGeneration 准入接口，超出额度时返回 402 与原因
func (s *HttpSrv) SubmitGeneration(c *gin.Context) {
	var (
		err error
		req SubmitGenerationRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	jobID, err := v1.NewGenerationLogic(c, s.Core).SubmitGenerationJob(currentUser(c), c.Param("contentid"), types.GenerationParams{
		Kind:                   req.Kind,
		Topic:                  req.Topic,
		Tone:                   req.Tone,
		Audience:               req.Audience,
		Keywords:               req.Keywords,
		MinWords:               req.MinWords,
		AdditionalInstructions: req.AdditionalInstructions,
		Model:                  req.Model,
	})
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, SubmitGenerationResponse{
		JobID: jobID,
	})
}

type GetJobResponse struct {
	Job   *types.GenerationJob `json:"job"`
	Usage []types.UsageRecord  `json:"usage"`
}

func (s *HttpSrv) GetJob(c *gin.Context) {
	job, usage, err := v1.NewGenerationLogic(c, s.Core).JobStatus(c.Param("jobid"))
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, GetJobResponse{
		Job:   job,
		Usage: usage,
	})
}

func (s *HttpSrv) CancelJob(c *gin.Context) {
	if err := v1.NewGenerationLogic(c, s.Core).CancelJob(currentUser(c), c.Param("jobid")); err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, nil)
}
