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

type LectureController struct {
	LectureRepo *repository.LectureRepository
	Storage     *service.StorageService
}

func NewLectureController(lectureRepo *repository.LectureRepository, storage *service.StorageService) *LectureController {
	return &LectureController{LectureRepo: lectureRepo, Storage: storage}
}

type lectureCreateRequest struct {
	Title         string `json:"title" binding:"required"`
	PDFObjectKey  string `json:"pdfObjectKey" binding:"required"`
	TextObjectKey string `json:"textObjectKey"`
	PageCount     int    `json:"pageCount"`
}

// @Summary Register an uploaded lecture
// @Description The platform uploads the PDF and extracted text to the bucket, then registers the object keys here.
// @Tags lectures
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param lecture body lectureCreateRequest true "Lecture metadata"
// @Success 201 {object} util.Response
// @Router /api/lectures [post]
func (c *LectureController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req lectureCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	status := model.LectureProcessing
	if req.TextObjectKey != "" {
		status = model.LectureReady
	}

	lecture := &model.Lecture{
		UserID:        user.UserID,
		Title:         req.Title,
		Status:        status,
		PDFObjectKey:  req.PDFObjectKey,
		TextObjectKey: req.TextObjectKey,
		PageCount:     req.PageCount,
	}

	if err := c.LectureRepo.Create(lecture); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, lecture)
}

// @Summary List the learner's lectures
// @Tags lectures
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/lectures [get]
func (c *LectureController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	lectures, total, err := c.LectureRepo.ListByUser(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  lectures,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary Get one lecture
// @Tags lectures
// @Produce json
// @Security ApiKeyAuth
// @Param lectureId path string true "Lecture ID"
// @Success 200 {object} util.Response
// @Router /api/lectures/{lectureId} [get]
func (c *LectureController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	lecture, err := c.LectureRepo.FindByID(ctx.Param("lectureId"))
	if errors.Is(err, util.ErrLectureNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if lecture.UserID != user.UserID && user.Role != model.Admin {
		util.Forbidden(ctx)
		return
	}

	util.Success(ctx, gin.H{
		"lecture": lecture,
		"pdfUrl":  c.Storage.GetURL(lecture.PDFObjectKey),
	})
}

// @Summary Delete a lecture and its story data
// @Tags lectures
// @Produce json
// @Security ApiKeyAuth
// @Param lectureId path string true "Lecture ID"
// @Success 200 {object} util.Response
// @Router /api/lectures/{lectureId} [delete]
func (c *LectureController) Delete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	lecture, err := c.LectureRepo.FindByID(ctx.Param("lectureId"))
	if errors.Is(err, util.ErrLectureNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if lecture.UserID != user.UserID && user.Role != model.Admin {
		util.Forbidden(ctx)
		return
	}

	if err := c.LectureRepo.Delete(lecture.ID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"message": "Lecture deleted"})
}
