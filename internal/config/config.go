package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client used for remote synchronization.
var UserAgent = "Go-Lifegrid/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName        = "Lifegrid"
	AppID          = "com.github.tartampluch.go-lifegrid"
	KeyringService = "com.github.tartampluch.go-lifegrid"
	KeyringSession = "session_token"
	KeyringAPIKey  = "remote_api_key"
	LogFileName    = "app.log"
	DBFileName     = "lifegrid.db"
	ConfigFileName = "config.toml"
	EnvPrefix      = "LIFEGRID_"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// Persistence Scopes
// -----------------------------------------------------------------------------

// Scope keys address one blob per store. They match the keys used by earlier
// releases so existing local state keeps loading.
const (
	ScopeLife       = "memento-vivere-life"
	ScopeMilestones = "memento-vivere-milestones"
	ScopeSelections = "memento-vivere-selections"
	ScopeUI         = "memento-vivere-ui"
)

// -----------------------------------------------------------------------------
// Week Arithmetic & Domain Defaults
// -----------------------------------------------------------------------------

const (
	WeeksPerYear          = 52
	WeeksPerQuarter       = 13
	DaysPerWeek           = 7
	DefaultLifeExpectancy = 80
	MinLifeExpectancy     = 1
	MaxLifeExpectancy     = 150
	FirstWeek             = 1

	DefaultTab  = "home"
	DefaultPage = "main"
)

// -----------------------------------------------------------------------------
// Backends
// -----------------------------------------------------------------------------

const (
	BackendSQLite = "sqlite"
	BackendFyne   = "fyne"
	BackendMemory = "memory"

	RemoteNone     = "none"
	RemoteREST     = "rest"
	RemotePostgres = "postgres"

	SQLiteDriver = "sqlite"
	SQLiteTable  = "scoped_blobs"
)

// -----------------------------------------------------------------------------
// Remote Record Tables
// -----------------------------------------------------------------------------

const (
	TableProfiles   = "user_profiles"
	TableMilestones = "user_milestones"
	TableSelections = "user_selections"
	ColumnUserID    = "user_id"

	RESTPathPrefix      = "/rest/v1"
	RESTPreferUpsert    = "resolution=merge-duplicates,return=minimal"
	RESTQueryByUser     = "user_id=eq.%s&limit=1"
	RESTQueryOnConflict = "on_conflict=" + ColumnUserID
)

// -----------------------------------------------------------------------------
// Sync & Network
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	SyncTimeout         = 45 * time.Second
	DefaultFlushEvery   = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	MaxHTTPResponseSize = 16 * 1024 * 1024 // 16MB
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	DefaultPort         = "18081"
	LocalhostBindAddr   = "127.0.0.1"
	AddrSeparator       = ":"
	RouteRoot           = "/"
	RouteCalendar       = "/calendar.ics"
	RouteMetrics        = "/metrics"
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	MetricsNamespace    = "lifegrid"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderAccept          = "Accept"
	HeaderAPIKey          = "apikey"
	HeaderAuthorization   = "Authorization"
	HeaderPrefer          = "Prefer"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeJSON            = "application/json"
	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"
	BearerPrefix        = "Bearer "

	HTTPMsgMethodNotAll = "Method not allowed"
	HTTPMsgInitializing = "Calendar is being generated, retry later"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	ICalVersion = "2.0"
	ICalProdid  = "-//Lifegrid//Weeks//EN"
	ICalCalName = "Life in Weeks"
	ICalMethod  = "PUBLISH"
	ICalScale   = "GREGORIAN"
	ICalDomain  = "lifegrid"

	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDescription = "DESCRIPTION"
	PropCategories  = "CATEGORIES"
	PropDTStart     = "DTSTART"
	PropDTStamp     = "DTSTAMP"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"
	PropRefresh     = "REFRESH-INTERVAL"

	DefaultICalRefresh = 12 * time.Hour

	VCardBDAY = "BDAY"
	VCardFN   = "FN"

	UIDSalt         = "go-lifegrid-v1-"
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%s"
	FormatUID       = "%s@%s"
	KindMilestone   = "milestone"
	KindGoal        = "goal"

	// StubVCalendar is the minimal valid iCalendar object used when there is nothing to publish.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Data Formats
// -----------------------------------------------------------------------------

const (
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyCategoryPrefix  = "category_"
	TKeyPresetPrefix    = "preset_"
	TKeyEvtMilestone    = "event_milestone"     // Requires Week
	TKeyEvtMilestoneCat = "event_milestone_cat" // Requires Label, Week
	TKeyEvtGoal         = "event_goal"          // Requires Title
	TKeyStatusLine      = "status_line"         // Requires Current, Total, Progress
	DefaultLanguage     = "en"
)

// SupportedLanguages defines the list of available languages (ISO 639-1).
var SupportedLanguages = []string{"en", "fr"}

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrInvalidDate      = "invalid birth date"
	ErrGoalNotFound     = "goal index out of range"
	ErrGoalIDNotFound   = "goal not found"
	ErrEncode           = "failed to encode snapshot"
	ErrDecode           = "failed to decode snapshot"
	ErrBackendWrite     = "failed to write snapshot"
	ErrBackendRead      = "failed to read snapshot"
	ErrGatewayClosed    = "persistence gateway is closed"
	ErrScopeEmpty       = "scope key is empty"
	ErrSQLiteOpen       = "failed to open sqlite store"
	ErrSQLiteMigrate    = "failed to migrate sqlite store"
	ErrRemoteFetch      = "remote fetch failed"
	ErrRemoteUpsert     = "remote upsert failed"
	ErrRemoteStatus     = "remote returned unexpected status"
	ErrRemoteDecode     = "failed to decode remote record"
	ErrRemoteConfig     = "remote endpoint misconfigured"
	ErrInvalidURL       = "invalid URL format"
	ErrProtocol         = "unsupported protocol scheme"
	ErrRemoteRequest    = "failed to build remote request"
	ErrUserIDEmpty      = "user id is empty"
	ErrNotAuthenticated = "not authenticated"
	ErrTokenInvalid     = "invalid session token"
	ErrTokenSubject     = "session token has no subject"
	ErrKeyring          = "keyring access failed"
	ErrVCardParse       = "failed to parse vCard stream"
	ErrVCardNoBirthday  = "vCard has no usable birthday"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrDateParse        = "unable to parse date"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrPortRequired     = "server port is required"
	ErrWriteResp        = "failed to write response body"
	ErrConfigDecode     = "failed to decode config"
	ErrConfigStat       = "failed to stat config"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrCreateDir        = "could not create app directory"
	ErrAppFailed        = "application failed unexpectedly"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
	ErrUnknownBackend   = "unsupported storage backend"
	ErrUnknownRemote    = "unsupported remote backend"
	ErrFynePrefs        = "fyne backend requires an application"
	ErrWeekArg          = "invalid week or week range"
	ErrVCardFetch       = "network error during vCard fetch"
	ErrEnvFile          = "failed to load env file"
	ErrOutputWrite      = "failed to write output"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgPersistFailed   = "Persisting snapshot failed"
	MsgPersistDone     = "Snapshot persisted"
	MsgLoadFailed      = "Loading snapshot failed, starting from defaults"
	MsgQueueStarted    = "Persistence queue started"
	MsgQueueStopped    = "Persistence queue stopped"
	MsgBirthRejected   = "Rejected invalid birth date"
	MsgWeekRecomputed  = "Current week recomputed"
	MsgGoalOutOfRange  = "Goal index out of range"
	MsgSyncStarted     = "Remote pull started"
	MsgSyncApplied     = "Remote record applied"
	MsgSyncAbsent      = "Remote record absent"
	MsgSyncFailed      = "Remote synchronization failed"
	MsgSyncSkipped     = "Remote push skipped, not authenticated"
	MsgPushDone        = "Remote record upserted"
	MsgSyncDirty       = "Flushing locally changed records"
	MsgWorkerStart     = "Flush worker started"
	MsgWorkerStop      = "Flush worker stopping due to context cancellation"
	MsgAuthChanged     = "Authentication state changed"
	MsgAuthRestoreFail = "Stored session could not be restored"
	MsgServerListen    = "HTTP server listening"
	MsgServerStop      = "Shutting down HTTP server..."
	MsgCacheUpdated    = "Calendar cache updated"
	MsgGenSuccess      = "Calendar generation successful"
	MsgFeedSkipGoal    = "Skipping goal without target week"
	MsgFeedFailed      = "Calendar rendering failed"
	MsgLocaleSkip      = "Skipping non-locale file"
	MsgLocaleBadName   = "Skipping malformed locale filename"
	MsgLocaleLoaded    = "Locale loaded successfully"
	MsgTransMissing    = "Missing translation key"
	MsgSkippedDate     = "Skipping invalid date format"
	MsgAppStarting     = "Starting application"
	MsgAppStop         = "Application stopped gracefully"
	MsgCtxCancel       = "Context cancelled, shutting down"
	MsgSettings        = "Settings resolved"
	MsgExported        = "Calendar exported"
	MsgPainted         = "Weeks painted"
	MsgImported        = "Profile imported from vCard"
	MsgFetchStarted    = "vCard download started"
	MsgFetchBadStatus  = "vCard server returned error status"
	MsgLogWarning      = "Warning: %s at %s: %v\n"
	MsgVersionOutput   = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyScope     = "scope"
	LogKeyBytes     = "size_bytes"
	LogKeyWeek      = "week"
	LogKeyIndex     = "index"
	LogKeyCount     = "count"
	LogKeyRecord    = "record"
	LogKeyTable     = "table"
	LogKeyUser      = "user"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyPort      = "port"
	LogKeyInterval  = "interval"
	LogKeyAuth      = "authenticated"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyETag      = "etag"
	LogKeyBackend   = "backend"
	LogKeyValue     = "value"
	LogKeyStats     = "stats"
	LogKeyEvents    = "events"
	LogKeyGoals     = "goals"

	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyCommit  = "commit"
	LogKeyDate    = "date"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompGateway    = "gateway"
	CompTemporal   = "temporal"
	CompSelection  = "selection"
	CompAnnotation = "annotation"
	CompPreference = "preference"
	CompSync       = "sync"
	CompAuth       = "auth"
	CompRemote     = "remote"
	CompFeed       = "feed"
	CompWorker     = "worker"
	CompMain       = "main"
	CompI18n       = "i18n"
	CompFetcher    = "fetcher"
)

// -----------------------------------------------------------------------------
// Remote Record Kinds
// -----------------------------------------------------------------------------

const (
	RecordProfile    = "profile"
	RecordMilestones = "milestones"
	RecordSelections = "selections"

	OpFetch  = "fetch"
	OpUpsert = "upsert"
)

// -----------------------------------------------------------------------------
// CLI
// -----------------------------------------------------------------------------

const (
	FlagConfig   = "config"
	FlagBackend  = "backend"
	FlagDebug    = "debug"
	FlagPort     = "port"
	FlagOutput   = "output"
	FlagLang     = "lang"
	FlagToken    = "token"
	FlagName     = "name"
	FlagBirth    = "birth"
	FlagLifeExp  = "life-expectancy"
	FlagPush     = "push"
	FlagUser     = "user"
	FlagPassword = "password"
	EnvFile      = ".env"
	StdoutPath   = "-"
)
