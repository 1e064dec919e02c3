package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	session := AuthMiddleware{Users: deps.Users, Tokens: deps.Tokens}

	health := HealthHandler{}
	auth := AuthHandler{
		Users:          deps.Users,
		Tokens:         deps.Tokens,
		Storage:        deps.Storage,
		Cleaner:        deps.Cleaner,
		Limiter:        deps.AuthLimiter,
		MaxUploadBytes: deps.MaxUploadBytes,
	}
	users := UserHandler{
		Users:          deps.Users,
		History:        deps.History,
		Storage:        deps.Storage,
		Cleaner:        deps.Cleaner,
		ChannelStats:   deps.ChannelStats,
		MaxUploadBytes: deps.MaxUploadBytes,
	}
	videos := VideoHandler{
		Videos:         deps.Videos,
		History:        deps.History,
		Storage:        deps.Storage,
		Probe:          deps.Probe,
		Cleaner:        deps.Cleaner,
		MaxUploadBytes: deps.MaxUploadBytes,
	}
	tweets := TweetHandler{Tweets: deps.Tweets, Users: deps.Users}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions, Users: deps.Users}
	if cache, ok := deps.ChannelStats.(StatsInvalidator); ok {
		subscriptions.StatsCache = cache
	}

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/users/register", auth.Register)
	mux.HandleFunc("POST /api/v1/users/login", auth.Login)
	mux.HandleFunc("POST /api/v1/users/refresh-token", auth.Refresh)
	mux.HandleFunc("POST /api/v1/users/logout", session.Require(auth.Logout))
	mux.HandleFunc("POST /api/v1/users/change-password", session.Require(auth.ChangePassword))
	mux.HandleFunc("GET /api/v1/users/current-user", session.Require(users.Current))
	mux.HandleFunc("PATCH /api/v1/users/update-account", session.Require(users.UpdateAccount))
	mux.HandleFunc("PATCH /api/v1/users/avatar", session.Require(users.UpdateAvatar))
	mux.HandleFunc("PATCH /api/v1/users/cover-image", session.Require(users.UpdateCoverImage))
	mux.HandleFunc("GET /api/v1/users/channel/{username}", session.Require(users.ChannelProfile))
	mux.HandleFunc("GET /api/v1/users/history", session.Require(users.WatchHistory))

	mux.HandleFunc("GET /api/v1/videos", session.Require(videos.List))
	mux.HandleFunc("POST /api/v1/videos", session.Require(videos.Create))
	mux.HandleFunc("GET /api/v1/videos/{videoId}", session.Require(videos.Get))
	mux.HandleFunc("PATCH /api/v1/videos/{videoId}", session.Require(videos.RequireOwner(videos.Update)))
	mux.HandleFunc("DELETE /api/v1/videos/{videoId}", session.Require(videos.RequireOwner(videos.Delete)))
	mux.HandleFunc("PATCH /api/v1/videos/toggle/publish/{videoId}", session.Require(videos.RequireOwner(videos.TogglePublish)))

	mux.HandleFunc("POST /api/v1/tweets", session.Require(tweets.Create))
	mux.HandleFunc("GET /api/v1/tweets/user/{userId}", session.Require(tweets.ListByUser))
	mux.HandleFunc("PATCH /api/v1/tweets/{tweetId}", session.Require(tweets.RequireOwner(tweets.Update)))
	mux.HandleFunc("DELETE /api/v1/tweets/{tweetId}", session.Require(tweets.RequireOwner(tweets.Delete)))

	mux.HandleFunc("POST /api/v1/subscriptions/channel/{channelId}", session.Require(subscriptions.Toggle))
	mux.HandleFunc("GET /api/v1/subscriptions/channel/{channelId}/subscribers", session.Require(subscriptions.ListSubscribers))
	mux.HandleFunc("GET /api/v1/subscriptions/user/{subscriberId}/channels", session.Require(subscriptions.ListChannels))
}
