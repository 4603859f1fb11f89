package controller

import (
	"errors"
	"strconv"

	"lectio_backend/internal/model"
	"lectio_backend/internal/repository"
	"lectio_backend/internal/service"
	"lectio_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type StoryController struct {
	StoryService *service.StoryService
	LectureRepo  *repository.LectureRepository
}

func NewStoryController(storyService *service.StoryService, lectureRepo *repository.LectureRepository) *StoryController {
	return &StoryController{StoryService: storyService, LectureRepo: lectureRepo}
}

type answerRequest struct {
	Correct *bool `json:"correct" binding:"required"`
}

func segmentNumberParam(ctx *gin.Context) (int, bool) {
	n, err := strconv.Atoi(ctx.Param("segmentNumber"))
	if err != nil || n < 1 {
		util.BadRequest(ctx, "Invalid segment number")
		return 0, false
	}
	return n, true
}

// authorizeLecture loads the lecture from the path and enforces the same
// ownership rule as the lecture endpoints: owner or admin.
func (c *StoryController) authorizeLecture(ctx *gin.Context, user *util.Claims) (*model.Lecture, bool) {
	lecture, err := c.LectureRepo.FindByID(ctx.Param("lectureId"))
	if errors.Is(err, util.ErrLectureNotFound) {
		util.NotFound(ctx)
		return nil, false
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return nil, false
	}
	if lecture.UserID != user.UserID && user.Role != model.Admin {
		util.Forbidden(ctx)
		return nil, false
	}
	return lecture, true
}

// @Summary Get the lecture's learning pathway
// @Description Returns pathway nodes joined with the learner's saved progress. Generates the pathway on first request.
// @Tags story
// @Produce json
// @Security ApiKeyAuth
// @Param lectureId path string true "Lecture ID"
// @Success 200 {object} util.Response
// @Router /api/lectures/{lectureId}/pathway [get]
func (c *StoryController) GetPathway(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	if _, ok := c.authorizeLecture(ctx, user); !ok {
		return
	}

	nodes, err := c.StoryService.Pathway(ctx.Request.Context(), user.UserID, ctx.Param("lectureId"))
	if err != nil {
		c.contentError(ctx, err)
		return
	}

	util.Success(ctx, nodes)
}

// @Summary List story segments
// @Tags story
// @Produce json
// @Security ApiKeyAuth
// @Param lectureId path string true "Lecture ID"
// @Success 200 {object} util.Response
// @Router /api/lectures/{lectureId}/story/segments [get]
func (c *StoryController) GetSegments(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	if _, ok := c.authorizeLecture(ctx, user); !ok {
		return
	}

	segments, err := c.StoryService.Content.GetSegments(ctx.Request.Context(), ctx.Param("lectureId"))
	if err != nil {
		c.contentError(ctx, err)
		return
	}

	util.Success(ctx, segments)
}

// @Summary Get a segment's slides and questions
// @Description Generates the material on the learner's first visit; later requests serve the stored copy.
// @Tags story
// @Produce json
// @Security ApiKeyAuth
// @Param lectureId path string true "Lecture ID"
// @Param segmentNumber path int true "Segment number"
// @Success 200 {object} util.Response
// @Router /api/lectures/{lectureId}/story/segments/{segmentNumber}/content [get]
func (c *StoryController) GetSegmentContent(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	if _, ok := c.authorizeLecture(ctx, user); !ok {
		return
	}

	n, ok := segmentNumberParam(ctx)
	if !ok {
		return
	}

	content, err := c.StoryService.Content.GetSegmentContent(ctx.Request.Context(), ctx.Param("lectureId"), n)
	if err != nil {
		c.contentError(ctx, err)
		return
	}

	util.Success(ctx, content)
}

// @Summary Get the learner's saved story progress
// @Tags story
// @Produce json
// @Security ApiKeyAuth
// @Param lectureId path string true "Lecture ID"
// @Success 200 {object} util.Response
// @Router /api/lectures/{lectureId}/story/progress [get]
func (c *StoryController) GetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	if _, ok := c.authorizeLecture(ctx, user); !ok {
		return
	}

	rows, err := c.StoryService.Progress(ctx.Request.Context(), user.UserID, ctx.Param("lectureId"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, rows)
}

// @Summary Get the in-session step and score for a segment
// @Tags story
// @Produce json
// @Security ApiKeyAuth
// @Param lectureId path string true "Lecture ID"
// @Param segmentNumber path int true "Segment number"
// @Success 200 {object} util.Response
// @Router /api/lectures/{lectureId}/story/segments/{segmentNumber}/state [get]
func (c *StoryController) GetSegmentState(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	if _, ok := c.authorizeLecture(ctx, user); !ok {
		return
	}

	n, ok := segmentNumberParam(ctx)
	if !ok {
		return
	}

	util.Success(ctx, c.StoryService.SegmentState(user.UserID, ctx.Param("lectureId"), n))
}

// @Summary Advance to the next step of a segment
// @Description Advances the 4-step cycle. Stepping past the last question evaluates the attempt and may restart the cycle.
// @Tags story
// @Produce json
// @Security ApiKeyAuth
// @Param lectureId path string true "Lecture ID"
// @Param segmentNumber path int true "Segment number"
// @Success 200 {object} util.Response
// @Router /api/lectures/{lectureId}/story/segments/{segmentNumber}/continue [post]
func (c *StoryController) Continue(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	if _, ok := c.authorizeLecture(ctx, user); !ok {
		return
	}

	n, ok := segmentNumberParam(ctx)
	if !ok {
		return
	}

	util.Success(ctx, c.StoryService.Continue(user.UserID, ctx.Param("lectureId"), n))
}

// @Summary Answer the current question of a segment
// @Description Scores the answer, evaluates mastery and persists completion in one transition.
// @Tags story
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param lectureId path string true "Lecture ID"
// @Param segmentNumber path int true "Segment number"
// @Param answer body answerRequest true "Whether the learner answered correctly"
// @Success 200 {object} util.Response
// @Router /api/lectures/{lectureId}/story/segments/{segmentNumber}/answer [post]
func (c *StoryController) AnswerQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	if _, ok := c.authorizeLecture(ctx, user); !ok {
		return
	}

	n, ok := segmentNumberParam(ctx)
	if !ok {
		return
	}

	var req answerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.StoryService.AnswerQuestion(ctx.Request.Context(), user.UserID, ctx.Param("lectureId"), n, *req.Correct)
	if errors.Is(err, util.ErrNotQuestionStep) {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// contentError maps Content Provider failures: missing records are 404,
// unextracted lectures are 409, everything else (LLM, storage) is a
// blocking upstream error the learner retries by navigating back.
func (c *StoryController) contentError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrLectureNotFound), errors.Is(err, util.ErrSegmentNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrLectureNotReady):
		util.Error(ctx, 409, err.Error())
	default:
		util.BadGateway(ctx, "Content generation failed, please go back and try again")
	}
}
