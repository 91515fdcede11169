package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// ResponseHandler is the token-response processing pipeline: it validates a
// raw authorization-server response against anti-forgery state, derives the
// persistable cache record, commits it through the persistence hooks, and
// projects the caller-facing authentication result.
//
// The handler holds only configuration-time values; everything derived per
// call (home account id, claims, the record itself) is threaded through the
// call explicitly.
type ResponseHandler struct {
	config            Config
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

type HandlerDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	CacheStore        CacheStore
	CachePlugin       CachePlugin
	TokenParser       TokenParser
	ClientInfoDecoder ClientInfoDecoder
	PoPSigner         PoPSigner
}

func NewResponseHandler(cfg Config, options ...Option) (*ResponseHandler, error) {
	builder := defaultHandlerBuilder(cfg)
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	provider, logger := glog.Resolve("identity", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("identity"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clientInfoDecoder == nil {
		builder.clientInfoDecoder = defaultClientInfoDecoder{}
	}
	if builder.clock == nil {
		builder.clock = time.Now
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &ResponseHandler{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		cacheStore:        builder.cacheStore,
		cachePlugin:       builder.cachePlugin,
		tokenParser:       builder.tokenParser,
		clientInfoDecoder: builder.clientInfoDecoder,
		popSigner:         builder.popSigner,
		clock:             builder.clock,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (h *ResponseHandler) Config() Config {
	if h == nil {
		return Config{}
	}
	return h.config
}

func (h *ResponseHandler) Dependencies() HandlerDependencies {
	if h == nil {
		return HandlerDependencies{}
	}
	return HandlerDependencies{
		Logger:            h.logger,
		LoggerProvider:    h.loggerProvider,
		MetricsRecorder:   h.metricsRecorder,
		ErrorFactory:      h.errorFactory,
		ErrorMapper:       h.errorMapper,
		ConfigProvider:    h.configProvider,
		OptionsResolver:   h.optionsResolver,
		CacheStore:        h.cacheStore,
		CachePlugin:       h.cachePlugin,
		TokenParser:       h.tokenParser,
		ClientInfoDecoder: h.clientInfoDecoder,
		PoPSigner:         h.popSigner,
	}
}

// ValidateAuthorizationCodePayload checks the redirect payload returned by
// the authorization endpoint before the code is exchanged. The exchange
// request itself is the caller's transport concern.
func (h *ResponseHandler) ValidateAuthorizationCodePayload(
	ctx context.Context,
	payload AuthorizationCodePayload,
	cachedState string,
) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		h.observeOperation(ctx, startedAt, "validate_authorization_response", err, fields)
	}()

	if h == nil {
		return fmt.Errorf("core: response handler is not configured")
	}
	validator := responseValidator{
		classifier:        h.config.InteractionRequired,
		clientInfoDecoder: h.clientInfoDecoder,
	}
	if err = validator.ValidateAuthorizationCodePayload(payload, cachedState); err != nil {
		err = h.mapError(err)
		return err
	}
	return nil
}

// HandleTokenResponseRequest carries one token-endpoint response plus the
// per-request material the pipeline validates and derives against.
type HandleTokenResponseRequest struct {
	Response      TokenResponse
	Authority     Authority
	RequestScopes []string
	CachedNonce   string
	// State is the echoed state parameter value; its caller-supplied portion
	// is surfaced verbatim on the result and its library timestamp anchors
	// expiry arithmetic.
	State           string
	OBOAssertion    string
	HandlingRefresh bool
	ResourceMethod  string
	ResourceURI     string
	PoPNonce        string
}

// HandleTokenResponse runs the full pipeline: validate, parse the identity
// token, assemble the cache record, commit it, and build the result.
//
// A nil result with a nil error is the deliberate refresh-race no-op: the
// account was removed by a concurrent caller and the refreshed tokens were
// not written.
func (h *ResponseHandler) HandleTokenResponse(
	ctx context.Context,
	req HandleTokenResponseRequest,
) (result *AuthenticationResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"authority_type": string(req.Authority.Type),
		"environment":    req.Authority.Environment(),
		"refresh_flow":   req.HandlingRefresh,
	}
	defer func() {
		if result == nil && err == nil {
			fields["outcome"] = "refresh_race_noop"
		}
		h.observeOperation(ctx, startedAt, "handle_token_response", err, fields)
	}()

	if h == nil {
		return nil, fmt.Errorf("core: response handler is not configured")
	}
	if err = req.Authority.Validate(); err != nil {
		err = h.mapError(err)
		return nil, err
	}

	validator := responseValidator{
		classifier:        h.config.InteractionRequired,
		clientInfoDecoder: h.clientInfoDecoder,
	}
	if err = validator.ValidateTokenResponse(req.Response); err != nil {
		err = h.mapError(err)
		return nil, err
	}

	var requestState *RequestState
	if strings.TrimSpace(req.State) != "" {
		parsed, parseErr := ParseRequestState(req.State)
		if parseErr != nil {
			err = h.mapError(parseErr)
			return nil, err
		}
		requestState = &parsed
	}

	var claims *IDTokenClaims
	if strings.TrimSpace(req.Response.IDToken) != "" {
		if h.tokenParser == nil {
			err = h.mapError(fmt.Errorf("core: token parser is required to process an id_token"))
			return nil, err
		}
		processor := idTokenProcessor{parser: h.tokenParser}
		parsed, parseErr := processor.Parse(ctx, req.Response.IDToken, req.CachedNonce)
		if parseErr != nil {
			err = h.mapError(parseErr)
			return nil, err
		}
		claims = &parsed
	}

	var clientInfo *ClientInfo
	if strings.TrimSpace(req.Response.ClientInfo) != "" {
		decoded, decodeErr := h.clientInfoDecoder.DecodeClientInfo(req.Response.ClientInfo)
		if decodeErr != nil {
			err = h.mapError(newClientInfoDecodeError(decodeErr))
			return nil, err
		}
		clientInfo = &decoded
	}

	assembler := recordAssembler{clientID: h.config.ClientID, now: h.clock}
	var libraryState *LibraryState
	if requestState != nil {
		libraryState = requestState.Library
	}
	record, assembleErr := assembler.Assemble(AssembleInput{
		Response:      req.Response,
		Authority:     req.Authority,
		Claims:        claims,
		LibraryState:  libraryState,
		RequestScopes: req.RequestScopes,
		OBOAssertion:  req.OBOAssertion,
	}, clientInfo)
	if assembleErr != nil {
		err = h.mapError(assembleErr)
		return nil, err
	}

	orchestrator := commitOrchestrator{
		clientID: h.config.ClientID,
		store:    h.cacheStore,
		plugin:   h.cachePlugin,
	}
	saved, commitErr := orchestrator.Commit(ctx, record, req.HandlingRefresh)
	if commitErr != nil {
		err = h.mapError(commitErr)
		return nil, err
	}
	if saved == nil {
		return nil, nil
	}

	builder := resultBuilder{signer: h.popSigner}
	built, buildErr := builder.Build(ctx, BuildResultInput{
		Record:         *saved,
		FromCache:      false,
		Claims:         claims,
		RequestState:   requestState,
		ResourceMethod: req.ResourceMethod,
		ResourceURI:    req.ResourceURI,
		PoPNonce:       req.PoPNonce,
	})
	if buildErr != nil {
		err = h.mapError(buildErr)
		return nil, err
	}

	result = &built
	return result, nil
}

// BuildResult projects an already-committed cache record (typically a cache
// hit) into an authentication result without touching the store.
func (h *ResponseHandler) BuildResult(ctx context.Context, in BuildResultInput) (AuthenticationResult, error) {
	if h == nil {
		return AuthenticationResult{}, fmt.Errorf("core: response handler is not configured")
	}
	builder := resultBuilder{signer: h.popSigner}
	built, err := builder.Build(ctx, in)
	if err != nil {
		return AuthenticationResult{}, h.mapError(err)
	}
	return built, nil
}

func (h *ResponseHandler) mapError(err error) error {
	if err == nil {
		return nil
	}
	if h == nil || h.errorMapper == nil {
		return err
	}
	mapped := h.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
