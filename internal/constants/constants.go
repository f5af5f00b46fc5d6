package constants

import "time"

const (
	QuarterDuration   = 20 * time.Minute
	ClockTickInterval = 1 * time.Second
)

const (
	StoreReadTimeout  = 5 * time.Second
	StoreWriteTimeout = 5 * time.Second
	DatabaseTimeout   = 5 * time.Second
	RequestTimeout    = 30 * time.Second
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	FirestoreTimeout      = 10 * time.Second
	FirestorePollInterval = 2 * time.Second
)

const (
	SessionIdleTTL      = 30 * time.Minute
	SessionReapInterval = 1 * time.Minute
	SessionEventBuffer  = 64
)

const (
	FeedWriteWait  = 10 * time.Second
	FeedPongWait   = 60 * time.Second
	FeedPingPeriod = (FeedPongWait * 9) / 10
	FeedSendBuffer = 32
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	MatchSearchLimit   = 50
	RankingConcurrency = 4
	MaxPlayerNumber    = 99
)
