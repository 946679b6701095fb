package model

// ================ Config ================
type APIConfig struct {
	URL           string `envconfig:"LINKSORT_API_URL" required:"true"`
	CSRFToken     string `envconfig:"LINKSORT_CSRF_TOKEN"`
	SessionCookie string `envconfig:"LINKSORT_SESSION_COOKIE"`
	Timeout       string `envconfig:"LINKSORT_TIMEOUT" default:"120s"`
}

type CacheConfig struct {
	TTL       string `envconfig:"CACHE_TTL" default:"10m"`
	Namespace string `envconfig:"CACHE_NAMESPACE" default:"linksort:cache"`
}

type SessionConfig struct {
	PageRoute    string `envconfig:"LINKSORT_PAGE_ROUTE" default:"/"`
	HistoryTurns int    `envconfig:"CHAT_HISTORY_TURNS" default:"10"`
}
