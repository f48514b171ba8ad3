package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"meetapp/cmd/middleware"
	"meetapp/internal/handler"
)

type Routers struct {
	Handler *handler.Handler
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.RequestID())
	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	apiGroup := app.Group("/v1")
	apiGroup.GET("/meetups", r.Handler.ListMeetups)

	authGroup := apiGroup.Group("")
	authGroup.Use(middleware.Auth())

	authGroup.POST("/meetups", r.Handler.CreateMeetup)
	authGroup.PUT("/meetups/:id", r.Handler.UpdateMeetup)
	authGroup.DELETE("/meetups/:id", r.Handler.DeleteMeetup)
	authGroup.GET("/organizing", r.Handler.ListOwnedMeetups)

	authGroup.GET("/subscriptions", r.Handler.ListSubscriptions)
	authGroup.POST("/meetups/:id/subscriptions", r.Handler.Subscribe)
	authGroup.DELETE("/subscriptions/:id", r.Handler.Unsubscribe)

	return app
}
