package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	accessx "github.com/campora/assistant/assistant/access"
	contractx "github.com/campora/assistant/assistant/contract"
	enginex "github.com/campora/assistant/assistant/engine"
	identityx "github.com/campora/assistant/assistant/identity"
)

type Config struct {
	Addr      string `envconfig:"ADDR" split_words:"true" default:":8080"`
	JWTSecret string `envconfig:"JWT_SECRET" split_words:"true" required:"true"`
}

// Server is the stateless HTTP adapter for the chat widget's message-send
// action. Each request resolves the principal's identity from its token,
// runs one exchange, and returns the reply; the widget owns the session.
type Server struct {
	echo     *echo.Echo
	resolver *identityx.Resolver
	engine   enginex.Exchanger
	addr     string
}

type payloadValidator struct {
	validate *validator.Validate
}

func (v *payloadValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewServer(cfg Config, resolver *identityx.Resolver, exch enginex.Exchanger) (*Server, error) {
	if resolver == nil {
		return nil, errors.New("identity resolver is required")
	}
	if exch == nil {
		return nil, errors.New("exchanger is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = &payloadValidator{validate: validator.New()}
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		resolver: resolver,
		engine:   exch,
		addr:     cfg.Addr,
	}

	g := e.Group("/assistant", bearerAuth([]byte(cfg.JWTSecret)))
	g.GET("/capabilities", s.capabilities)
	g.POST("/messages", s.sendMessage)

	return s, nil
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("assistant api listening")
	return s.echo.Start(s.addr)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

type historyMessage struct {
	Sender string `json:"sender" validate:"required,oneof=user bot"`
	Text   string `json:"text" validate:"required"`
}

type messageRequest struct {
	Message string           `json:"message" validate:"required,max=2000"`
	History []historyMessage `json:"history" validate:"max=10,dive"`
}

type messageResponse struct {
	Reply          string             `json:"reply"`
	Outcome        string             `json:"outcome"`
	Intent         string             `json:"intent,omitempty"`
	AllowedIntents []contractx.Intent `json:"allowed_intents"`
}

type capabilitiesResponse struct {
	Role           contractx.Role     `json:"role"`
	AllowedIntents []contractx.Intent `json:"allowed_intents"`
}

// capabilities tells the widget which intents it may offer as suggestions.
func (s *Server) capabilities(c echo.Context) error {
	ident, err := s.resolveIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, capabilitiesResponse{
		Role:           ident.Role,
		AllowedIntents: accessx.AllowedIntents(ident.Role),
	})
}

func (s *Server) sendMessage(c echo.Context) error {
	ident, err := s.resolveIdentity(c)
	if err != nil {
		return err
	}

	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	history := make([]contractx.Message, 0, len(req.History))
	for _, msg := range req.History {
		history = append(history, contractx.Message{
			Sender: contractx.Sender(msg.Sender),
			Text:   msg.Text,
			At:     time.Now(),
		})
	}

	res, err := s.engine.Handle(c.Request().Context(), enginex.ExchangeInput{
		Identity:  ident,
		Utterance: req.Message,
		History:   history,
	})
	if err != nil {
		log.Error().Err(err).Msg("exchange failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "exchange failed")
	}

	resp := messageResponse{
		Reply:          res.Reply,
		Outcome:        string(res.Outcome),
		AllowedIntents: res.AllowedIntents,
	}
	if res.Intent != nil {
		resp.Intent = string(*res.Intent)
	}
	return c.JSON(http.StatusOK, resp)
}

// resolveIdentity maps the request's principal to a role. An unresolved
// principal gets 403: the assistant is disabled for them, the rest of the
// application is unaffected.
func (s *Server) resolveIdentity(c echo.Context) (*contractx.ResolvedIdentity, error) {
	p, ok := principalFrom(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing principal")
	}

	ident, err := s.resolver.Resolve(c.Request().Context(), p)
	if err != nil {
		if errors.Is(err, contractx.ErrIdentityUnresolved) {
			return nil, echo.NewHTTPError(http.StatusForbidden, "assistant unavailable for this account")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "identity resolution failed")
	}
	return ident, nil
}
