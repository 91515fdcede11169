package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type handlerBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	cacheStore        CacheStore
	cachePlugin       CachePlugin
	tokenParser       TokenParser
	clientInfoDecoder ClientInfoDecoder
	popSigner         PoPSigner
	clock             func() time.Time
}

type Option func(*handlerBuilder)

func WithLogger(logger Logger) Option {
	return func(b *handlerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *handlerBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *handlerBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *handlerBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *handlerBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *handlerBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *handlerBuilder) {
		b.optionsResolver = resolver
	}
}

func WithCacheStore(store CacheStore) Option {
	return func(b *handlerBuilder) {
		b.cacheStore = store
	}
}

func WithCachePlugin(plugin CachePlugin) Option {
	return func(b *handlerBuilder) {
		b.cachePlugin = plugin
	}
}

func WithTokenParser(parser TokenParser) Option {
	return func(b *handlerBuilder) {
		b.tokenParser = parser
	}
}

func WithClientInfoDecoder(decoder ClientInfoDecoder) Option {
	return func(b *handlerBuilder) {
		b.clientInfoDecoder = decoder
	}
}

func WithPoPSigner(signer PoPSigner) Option {
	return func(b *handlerBuilder) {
		b.popSigner = signer
	}
}

// WithClock overrides the time source used for cache timestamps and expiry
// arithmetic. Tests use it to pin derivations to a fixed instant.
func WithClock(clock func() time.Time) Option {
	return func(b *handlerBuilder) {
		b.clock = clock
	}
}

func defaultHandlerBuilder(runtime Config) handlerBuilder {
	loggerProvider, logger := glog.Resolve("identity", nil, nil)
	return handlerBuilder{
		runtimeConfig:     runtime,
		loggerProvider:    loggerProvider,
		logger:            logger,
		metricsRecorder:   NopMetricsRecorder{},
		errorFactory:      goerrors.New,
		errorMapper:       defaultErrorMapper,
		configProvider:    NewCfgxConfigProvider(nil),
		optionsResolver:   GoOptionsResolver{},
		clientInfoDecoder: defaultClientInfoDecoder{},
		clock:             time.Now,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return identityErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ClientID) != "" {
		layer["client_id"] = cfg.ClientID
	}
	if includeZero || len(cfg.InteractionRequired.ErrorCodes) > 0 || len(cfg.InteractionRequired.SubErrorCodes) > 0 {
		layer["interaction_required"] = map[string]any{
			"error_codes":    append([]string(nil), cfg.InteractionRequired.ErrorCodes...),
			"suberror_codes": append([]string(nil), cfg.InteractionRequired.SubErrorCodes...),
		}
	}
	return layer
}
