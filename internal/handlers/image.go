package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/divyandj/IMAGE-Hackathon/internal/middleware"
	"github.com/divyandj/IMAGE-Hackathon/internal/service"
)

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Size   string `json:"size" binding:"omitempty,oneof=256x256 512x512 1024x1024 1792x1024 1024x1792"`
	Style  string `json:"style" binding:"omitempty,max=64"`
}

type modifyRequest struct {
	OriginalPrompt     string `json:"original_prompt" binding:"required"`
	ModificationPrompt string `json:"modification_prompt" binding:"required"`
}

type saveRequest struct {
	Title    string `json:"title" binding:"required"`
	Category string `json:"category" binding:"required"`
	URL      string `json:"url" binding:"required"`
	Prompt   string `json:"prompt" binding:"required"`
}

type storyRequest struct {
	StoryPrompt string `json:"story_prompt" binding:"required"`
	NumImages   *int   `json:"num_images"`
}

type imageResponse struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

type sceneResponse struct {
	Text      string `json:"text"`
	Image     string `json:"image"`
	Prompt    string `json:"prompt"`
	Timestamp string `json:"timestamp"`
}

type storyResponse struct {
	Introduction string          `json:"introduction"`
	Scenes       []sceneResponse `json:"scenes"`
}

const storyValidationMessage = "Story prompt and valid number of images (1-10) are required"

func (h HandlerSet) GenerateImage(c *gin.Context) {
	var req generateRequest
	if !bindJSON(c, &req, "Prompt is required") {
		return
	}

	img, err := h.studio.Generate(c.Request.Context(), service.GenerateInput{
		Prompt: req.Prompt,
		Size:   req.Size,
		Style:  req.Style,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, imageResponse{Image: img.URL, Prompt: img.Prompt})
}

func (h HandlerSet) ModifyImage(c *gin.Context) {
	var req modifyRequest
	if !bindJSON(c, &req, "Original and modification prompt required") {
		return
	}

	img, err := h.studio.Modify(c.Request.Context(), req.OriginalPrompt, req.ModificationPrompt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, imageResponse{Image: img.URL, Prompt: img.Prompt})
}

func (h HandlerSet) GenerateStory(c *gin.Context) {
	var req storyRequest
	if !bindJSON(c, &req, storyValidationMessage) {
		return
	}
	numImages := service.DefaultStoryScenes
	if req.NumImages != nil {
		numImages = *req.NumImages
	}

	story, err := h.studio.Story(c.Request.Context(), req.StoryPrompt, numImages)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := storyResponse{
		Introduction: story.Introduction,
		Scenes:       make([]sceneResponse, 0, len(story.Scenes)),
	}
	for _, scene := range story.Scenes {
		resp.Scenes = append(resp.Scenes, sceneResponse{
			Text:      scene.Text,
			Image:     scene.Image,
			Prompt:    scene.Prompt,
			Timestamp: scene.Timestamp,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h HandlerSet) UploadImage(c *gin.Context) {
	input, file, ok := h.formFile(c, "file", "No file part", "No selected file")
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.uploads.Upload(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": result.URL})
}

func (h HandlerSet) SaveImage(c *gin.Context) {
	var req saveRequest
	if !bindJSON(c, &req, "Missing required fields") {
		return
	}

	id, err := h.gallery.Save(c.Request.Context(), middleware.UserID(c), service.SaveInput{
		Title:    req.Title,
		Category: req.Category,
		URL:      req.URL,
		Prompt:   req.Prompt,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"image_id": id, "message": "Image saved successfully"})
}

func (h HandlerSet) AnalyzeImage(c *gin.Context) {
	input, file, ok := h.formFile(c, "image", "No image file provided", "Invalid file name")
	if !ok {
		return
	}
	defer file.Close()

	analysis, err := h.studio.Analyze(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", analysis)
}

// formFile opens the multipart field. The caller closes the returned file.
func (h HandlerSet) formFile(c *gin.Context, field, missingMsg, emptyNameMsg string) (service.UploadInput, multipart.File, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": missingMsg})
		}
		return service.UploadInput{}, nil, false
	}
	if header.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": emptyNameMsg})
		return service.UploadInput{}, nil, false
	}

	file, err := header.Open()
	if err != nil {
		h.requestLog(c).Error().Err(err).Str("field", field).Msg("open multipart file failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": missingMsg})
		return service.UploadInput{}, nil, false
	}
	return service.UploadInput{Filename: header.Filename, File: file, Size: header.Size}, file, true
}
