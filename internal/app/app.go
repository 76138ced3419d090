// Package app wires configuration into a running client: store, auth,
// object storage, presence, events and the state containers.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-client/internal/auth"
	"github.com/fathima-sithara/dm-client/internal/cache"
	"github.com/fathima-sithara/dm-client/internal/config"
	"github.com/fathima-sithara/dm-client/internal/discovery"
	"github.com/fathima-sithara/dm-client/internal/events"
	"github.com/fathima-sithara/dm-client/internal/metrics"
	"github.com/fathima-sithara/dm-client/internal/repository"
	"github.com/fathima-sithara/dm-client/internal/service"
	"github.com/fathima-sithara/dm-client/internal/storage"
	"github.com/fathima-sithara/dm-client/internal/store"
	"github.com/fathima-sithara/dm-client/internal/store/memstore"
	"github.com/fathima-sithara/dm-client/internal/store/mongostore"
)

type App struct {
	Config  *config.Config
	Log     *zap.SugaredLogger
	Store   store.RemoteStore
	Auth    *auth.Client
	Metrics *metrics.Metrics
	Events  events.Publisher

	Users     *repository.UserRepository
	UserChats *repository.UserChatsRepository
	Chats     *repository.ChatRepository

	Session   *service.SessionState
	Selection *service.ChatSelectionState
	ChatList  *service.ChatListSync
	Messages  *service.MessageSync
	Threads   *service.ThreadCreation
	Blocks    *service.BlockService
	Accounts  *service.AccountService
	Media     *service.MediaService
}

// Bootstrap builds the client. The returned cleanup tears everything down
// in reverse order and is safe to call once.
func Bootstrap(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, func(), error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	var closers []func(context.Context)
	cleanup := func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](cctx)
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}
	if cfg.Metrics.PushgatewayURL != "" {
		closers = append(closers, func(ctx context.Context) {
			if err := a.Metrics.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
				log.Warnw("push metrics", "error", err)
			}
		})
	}

	rs, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	a.Store = rs
	closers = append(closers, closeStore)

	authURL, err := resolveAuthURL(cfg, log)
	if err != nil {
		return fail(err)
	}
	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.PublicKeyPath)
	if err != nil {
		return fail(fmt.Errorf("jwt verifier: %w", err))
	}
	a.Auth = auth.NewClient(auth.Options{
		BaseURL:           authURL,
		Timeout:           cfg.AuthTimeout,
		MaxFailures:       cfg.Breaker.MaxFailures,
		BreakerInterval:   cfg.BreakerInterval,
		BreakerTimeout:    cfg.BreakerTimeout,
		RequestsPerSecond: cfg.Auth.RequestsPerSecond,
		Burst:             cfg.Auth.Burst,
		Verifier:          verifier,
	}, log.Named("auth"))

	var uploader storage.Uploader = storage.Disabled{}
	if cfg.AWS.Bucket != "" {
		s3, err := storage.NewS3Store(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.Endpoint, cfg.S3.PublicRead, cfg.PresignTTL)
		if err != nil {
			return fail(fmt.Errorf("s3 init: %w", err))
		}
		uploader = s3
	}

	a.Events = events.Nop()
	if len(cfg.Kafka.Brokers) > 0 {
		a.Events = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	closers = append(closers, func(context.Context) {
		if err := a.Events.Close(); err != nil {
			log.Warnw("close event publisher", "error", err)
		}
	})

	var presence service.Presence
	if cfg.Redis.Addr != "" {
		p := cache.NewPresence(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			log.Warnw("redis unavailable, presence disabled", "addr", cfg.Redis.Addr, "error", err)
			_ = p.Close()
		} else {
			presence = p
			closers = append(closers, func(context.Context) { _ = p.Close() })
		}
	}

	a.Users = repository.NewUserRepository(rs)
	a.UserChats = repository.NewUserChatsRepository(rs)
	a.Chats = repository.NewChatRepository(rs)

	a.Media = service.NewMediaService(repository.NewMediaRepo(rs), uploader, a.Metrics, log.Named("media"))
	a.Session = service.NewSessionState(a.Users, presence, a.Metrics, log.Named("session"))
	a.Selection = service.NewChatSelectionState(a.Session, a.Users, a.Metrics, log.Named("selection"))
	a.ChatList = service.NewChatListSync(a.UserChats, a.Users, a.Selection, cfg.FilterDebounce, a.Metrics, log.Named("chatlist"))
	a.Messages = service.NewMessageSync(a.Chats, a.UserChats, a.Session, a.Selection, a.Media, a.Events, a.Metrics, log.Named("messages"))
	a.Threads = service.NewThreadCreation(a.Users, a.Chats, a.UserChats, a.Events, a.Metrics, log.Named("threads"))
	a.Blocks = service.NewBlockService(a.Users, a.Session, a.Selection, a.Events, log.Named("block"))
	a.Accounts = service.NewAccountService(a.Auth, a.Users, a.UserChats, a.Session, a.Media, log.Named("accounts"))

	if err := a.restoreIdentity(); err != nil {
		log.Warnw("saved identity ignored", "path", cfg.Auth.IdentityFile, "error", err)
	}
	unpersist := a.Auth.OnIdentityChange(a.persistIdentity)

	// the session lives until cleanup, not until ctx ends
	sessionCtx, stopSession := context.WithCancel(context.Background())
	unbind := a.Session.Bind(sessionCtx, a.Auth)
	closers = append(closers, func(ctx context.Context) {
		unbind()
		unpersist()
		a.Messages.Close()
		a.ChatList.Close()
		a.Selection.Deselect()
		a.Session.Detach()
		stopSession()
	})
	return a, cleanup, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (store.RemoteStore, func(context.Context), error) {
	switch cfg.Store.Driver {
	case "memory":
		return memstore.New(), func(context.Context) {}, nil
	case "mongo", "":
		ms, err := mongostore.Connect(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database, cfg.StoreTimeout, log.Named("store"))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		return ms, func(ctx context.Context) {
			if err := ms.Close(ctx); err != nil {
				log.Warnw("mongo disconnect", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func resolveAuthURL(cfg *config.Config, log *zap.SugaredLogger) (string, error) {
	if cfg.Auth.BaseURL != "" {
		return cfg.Auth.BaseURL, nil
	}
	d, err := discovery.New(cfg.Discovery.ConsulAddr, cfg.Discovery.Services, log.Named("discovery"))
	if err != nil {
		return "", fmt.Errorf("discovery: %w", err)
	}
	u, err := d.Lookup(cfg.Auth.ServiceName)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", cfg.Auth.ServiceName, err)
	}
	return u, nil
}

func (a *App) restoreIdentity() error {
	path := a.Config.Auth.IdentityFile
	if path == "" {
		return nil
	}
	id, err := auth.LoadIdentity(path)
	if err != nil {
		return err
	}
	if id == nil {
		return nil
	}
	if id.Expired(time.Now()) {
		return auth.ClearIdentity(path)
	}
	a.Auth.Restore(id)
	return nil
}

func (a *App) persistIdentity(id *auth.Identity) {
	path := a.Config.Auth.IdentityFile
	if path == "" {
		return
	}
	var err error
	if id == nil {
		err = auth.ClearIdentity(path)
	} else {
		err = auth.SaveIdentity(path, id)
	}
	if err != nil {
		a.Log.Warnw("persist identity", "path", path, "error", err)
	}
}
