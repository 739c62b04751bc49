package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"healthnexus-portal/internal/activity"
	"healthnexus-portal/internal/middleware"
	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/utils"
)

// NewsHandler handles news articles.
type NewsHandler struct {
	DB       *gorm.DB
	Activity *activity.Recorder
}

// NewNewsHandler creates a new NewsHandler.
func NewNewsHandler(db *gorm.DB, rec *activity.Recorder) *NewsHandler {
	return &NewsHandler{DB: db, Activity: rec}
}

// NewsRequest is the body of both create and update. Update applies only the
// fields that are present.
type NewsRequest struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Category  *string `json:"category"`
	Published *bool   `json:"published"`
}

// GetNews lists published articles, newest first. ?category= narrows the list.
func (h *NewsHandler) GetNews(c *gin.Context) {
	h.list(c, h.DB.Where("published = ?", true))
}

// GetAllNews lists drafts and published articles for the admin news manager.
func (h *NewsHandler) GetAllNews(c *gin.Context) {
	h.list(c, h.DB)
}

func (h *NewsHandler) list(c *gin.Context, query *gorm.DB) {
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("category = ?", strings.ToLower(category))
	}

	var news []models.News
	if err := query.Order("created_at desc").Find(&news).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch news: "+err.Error())
		return
	}
	utils.Success(c, news)
}

// GetArticle returns one article by ID.
func (h *NewsHandler) GetArticle(c *gin.Context) {
	article, ok := h.find(c)
	if !ok {
		return
	}
	utils.Success(c, article)
}

// CreateNews handles publishing an article (admin).
func (h *NewsHandler) CreateNews(c *gin.Context) {
	var req NewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		utils.BadRequest(c, "Title is required")
		return
	}

	authorID, _ := middleware.GetUserIDFromContext(c)
	article := models.News{AuthorID: authorID, Category: "news"}
	applyNews(&article, req)

	if err := h.DB.Create(&article).Error; err != nil {
		utils.InternalServerError(c, "Failed to create article: "+err.Error())
		return
	}

	h.Activity.Record(c.Request.Context(), activity.TypeNews, "News posted: %s", article.Title)

	utils.Created(c, article)
}

// UpdateNews handles editing an article (admin).
func (h *NewsHandler) UpdateNews(c *gin.Context) {
	var req NewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	article, ok := h.find(c)
	if !ok {
		return
	}
	applyNews(article, req)
	if strings.TrimSpace(article.Title) == "" {
		utils.BadRequest(c, "Title is required")
		return
	}

	if err := h.DB.Save(article).Error; err != nil {
		utils.InternalServerError(c, "Failed to update article: "+err.Error())
		return
	}

	h.Activity.Record(c.Request.Context(), activity.TypeNews, "News updated: %s", article.Title)

	utils.Success(c, article)
}

// DeleteNews handles removing an article (admin).
func (h *NewsHandler) DeleteNews(c *gin.Context) {
	article, ok := h.find(c)
	if !ok {
		return
	}

	if err := h.DB.Delete(article).Error; err != nil {
		utils.InternalServerError(c, "Failed to delete article: "+err.Error())
		return
	}

	h.Activity.Record(c.Request.Context(), activity.TypeNews, "News removed: %s", article.Title)

	c.JSON(http.StatusOK, gin.H{"msg": utils.MsgSuccess})
}

func (h *NewsHandler) find(c *gin.Context) (*models.News, bool) {
	var article models.News
	if err := h.DB.First(&article, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Article not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &article, true
}

func applyNews(article *models.News, req NewsRequest) {
	if req.Title != nil {
		article.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		article.Content = *req.Content
	}
	if req.Category != nil {
		article.Category = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.Published != nil {
		article.Published = *req.Published
	}
}
