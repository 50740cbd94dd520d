package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mezonai/starnotary/chain"
	"github.com/mezonai/starnotary/errors"
	"github.com/mezonai/starnotary/exception"
	"github.com/mezonai/starnotary/logx"
	"github.com/mezonai/starnotary/mempool"
	"github.com/mezonai/starnotary/monitoring"
	"github.com/mezonai/starnotary/notary"
	"github.com/mezonai/starnotary/ratelimit"
	"github.com/mezonai/starnotary/security/validation"
)

type AddressReq struct {
	Address string `json:"address"`
}

type SignatureReq struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type StarReq struct {
	Address string      `json:"address"`
	Star    notary.Star `json:"star"`
}

type SignatureResp struct {
	RegisterStar bool           `json:"registerStar"`
	Status       mempool.Status `json:"status"`
}

type APIServer struct {
	Notary     *notary.Service
	Mempool    *mempool.Mempool
	ListenAddr string
	limiter    *ratelimit.RateLimiter
	server     *http.Server
	errc       chan error
}

// NewAPIServer wires the REST surface. limiter may be nil to disable rate
// limiting of write routes.
func NewAPIServer(svc *notary.Service, mp *mempool.Mempool, addr string, limiter *ratelimit.RateLimiter) *APIServer {
	return &APIServer{
		Notary:     svc,
		Mempool:    mp,
		ListenAddr: addr,
		limiter:    limiter,
	}
}

func (s *APIServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), limitBody(validation.DefaultRequestBodyLimit))

	writes := r.Group("/")
	if s.limiter != nil {
		writes.Use(ratelimit.PerIP(s.limiter))
	}
	writes.POST("/requestValidation", s.handleRequestValidation)
	writes.POST("/message-signature/validate", s.handleValidateSignature)
	writes.POST("/block", s.handleSubmitStar)

	r.GET("/stars/block/:height", s.handleGetBlock)
	// /stars/hash:{hash} and /stars/walletaddress:{address}
	r.GET("/stars/:selector", s.handleStarLookup)

	r.GET("/chain/height", s.handleChainHeight)
	r.GET("/chain/validate", s.handleChainValidate)
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(monitoring.Handler()))
	return r
}

// Start binds the listen address and serves in the background. A bind
// failure is returned; a later serve failure is delivered on Err.
func (s *APIServer) Start() error {
	ln, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.ListenAddr, err)
	}
	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.errc = make(chan error, 1)
	logx.Info("API", "API listen on ", ln.Addr().String())
	exception.SafeGo("api server", func() {
		if err := s.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logx.Error("API", "API server stopped: ", err)
			s.errc <- err
		}
	})
	return nil
}

// Err delivers the error that stopped the server. It never fires after a
// clean Shutdown, nor before Start.
func (s *APIServer) Err() <-chan error {
	return s.errc
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, errors.NewError(errors.ErrCodeInvalidRequest, msg))
}

// toNetworkError maps domain errors to the transport error shape.
func toNetworkError(err error) *errors.NetworkError {
	var ne *errors.NetworkError
	switch {
	case stderrors.As(err, &ne):
		return ne
	case stderrors.Is(err, mempool.ErrAlreadyPending):
		return &errors.NetworkError{Code: errors.ErrCodeAlreadyPending, Message: errors.ErrMsgAlreadyPending}
	case stderrors.Is(err, mempool.ErrNoPendingRequest):
		return &errors.NetworkError{Code: errors.ErrCodeNoPendingRequest, Message: errors.ErrMsgNoPendingRequest}
	case stderrors.Is(err, mempool.ErrInvalidSignature):
		return &errors.NetworkError{Code: errors.ErrCodeInvalidSignature, Message: errors.ErrMsgInvalidSignature}
	case stderrors.Is(err, notary.ErrNotAuthorized):
		return &errors.NetworkError{Code: errors.ErrCodeNotAuthorized, Message: errors.ErrMsgNotAuthorized}
	case stderrors.Is(err, chain.ErrNotFound):
		return &errors.NetworkError{Code: errors.ErrCodeBlockNotFound, Message: errors.ErrMsgBlockNotFound}
	case stderrors.Is(err, chain.ErrStore):
		return &errors.NetworkError{Code: errors.ErrCodeStoreUnavailable, Message: errors.ErrMsgStoreUnavailable}
	default:
		return &errors.NetworkError{Code: errors.ErrCodeInternal, Message: errors.ErrMsgInternal}
	}
}

func writeError(c *gin.Context, err error) {
	ne := toNetworkError(err)
	status := ne.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logx.Error("API", c.Request.Method, " ", c.FullPath(), ": ", err)
	}
	c.AbortWithStatusJSON(status, ne)
}

func (s *APIServer) handleRequestValidation(c *gin.Context) {
	var req AddressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.ErrMsgInvalidRequest)
		return
	}
	challenge, err := s.Notary.RequestValidation(req.Address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

func (s *APIServer) handleValidateSignature(c *gin.Context) {
	var req SignatureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.ErrMsgInvalidRequest)
		return
	}
	status, err := s.Notary.ValidateSignature(req.Address, req.Signature)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SignatureResp{RegisterStar: true, Status: status})
}

func (s *APIServer) handleSubmitStar(c *gin.Context) {
	var req StarReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.ErrMsgInvalidRequest)
		return
	}
	sb, err := s.Notary.SubmitStar(c.Request.Context(), req.Address, req.Star)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sb)
}

func (s *APIServer) handleGetBlock(c *gin.Context) {
	height, err := strconv.ParseUint(c.Param("height"), 10, 64)
	if err != nil {
		badRequest(c, errors.ErrMsgInvalidBlockHeight)
		return
	}
	sb, err := s.Notary.GetByHeight(c.Request.Context(), height)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sb)
}

const (
	hashSelector    = "hash:"
	addressSelector = "walletaddress:"
)

func (s *APIServer) handleStarLookup(c *gin.Context) {
	selector := c.Param("selector")
	switch {
	case strings.HasPrefix(selector, hashSelector):
		sb, err := s.Notary.GetByHash(c.Request.Context(), strings.TrimPrefix(selector, hashSelector))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sb)
	case strings.HasPrefix(selector, addressSelector):
		stars, err := s.Notary.GetByAddress(c.Request.Context(), strings.TrimPrefix(selector, addressSelector))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, stars)
	default:
		c.JSON(http.StatusNotFound, &errors.NetworkError{Code: errors.ErrCodeInvalidRequest, Message: "unknown star lookup " + selector})
	}
}

func (s *APIServer) handleChainHeight(c *gin.Context) {
	height, err := s.Notary.Height(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"height": height})
}

func (s *APIServer) handleChainValidate(c *gin.Context) {
	offending, err := s.Notary.ValidateChain(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":     len(offending) == 0,
		"offending": offending,
	})
}

func (s *APIServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"mempool_size": s.Mempool.Len(),
		"timestamp":    time.Now().Unix(),
	})
}
