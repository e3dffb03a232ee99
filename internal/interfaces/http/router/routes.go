package router

import (
	"horror-nobel-api/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, storyHandler *handler.StoryHandler) {
	v1.GET("/quiz", storyHandler.GetQuiz)

	// 故事
	stories := v1.Group("/stories")
	{
		stories.GET("", storyHandler.ListStories)
		stories.POST("", storyHandler.CreateStory)
		stories.GET("/:id", storyHandler.GetStory)
		stories.POST("/:id/chat", storyHandler.Chat)
		stories.POST("/:id/complete", storyHandler.Complete)
		stories.POST("/:id/send-email", storyHandler.SendEmail)
		stories.POST("/:id/finish", storyHandler.Finish)
		stories.GET("/:id/pdf", storyHandler.DownloadPDF)

		// 朗读：:chunk 为片段序号或 complete
		stories.POST("/:id/audio", storyHandler.GenerateAudio)
		stories.GET("/:id/audio/:chunk", storyHandler.GetAudio)
	}
}
