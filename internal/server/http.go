package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/battlearena/arena-server-go/internal/arena"
	"github.com/battlearena/arena-server-go/internal/auth"
	"github.com/battlearena/arena-server-go/internal/battle"
	"github.com/battlearena/arena-server-go/internal/creature"
	"github.com/battlearena/arena-server-go/internal/ledger"
	"github.com/battlearena/arena-server-go/internal/market"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// identityHeader carries the caller identity, standing in for the connected
// session of the view layer.
const identityHeader = "X-Arena-Identity"

// Server exposes every arena operation over HTTP/JSON.
type Server struct {
	arena      *arena.Arena
	authorizer *auth.Authorizer
	logger     *zap.Logger
}

// NewServer creates the HTTP server over the arena.
func NewServer(a *arena.Arena, authorizer *auth.Authorizer, logger *zap.Logger) *Server {
	return &Server{arena: a, authorizer: authorizer, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")

	api.GET("/creatures/:id", s.getCreature)
	api.GET("/identities/:id/creatures", s.listCreatures)
	api.GET("/identities/:id/stats", s.getStats)
	api.GET("/identities/:id/balance", s.getBalance)
	api.GET("/currency/supply", s.getSupply)
	api.GET("/listings", s.activeListings)
	api.GET("/listings/:id", s.getListing)
	api.GET("/leaderboard", s.topBattlers)

	authed := api.Group("", s.requireIdentity())
	authed.POST("/starters", s.mintStarter)
	authed.POST("/creatures", s.mintCreature)
	authed.POST("/creatures/:id/train", s.train)
	authed.POST("/creatures/:id/rest", s.rest)
	authed.POST("/creatures/:id/wake", s.wake)
	authed.POST("/creatures/:id/transfer", s.transferCreature)
	authed.POST("/creatures/:id/approve", s.approveCreature)
	authed.DELETE("/creatures/:id", s.removeCreature)
	authed.POST("/battles", s.battle)
	authed.POST("/currency/transfer", s.transferCurrency)
	authed.POST("/currency/approve", s.approveCurrency)
	authed.POST("/listings", s.listCreature)
	authed.POST("/listings/:id/purchase", s.purchase)
	authed.POST("/listings/:id/cancel", s.cancel)

	admin := api.Group("/admin", s.requireAdmin())
	admin.POST("/minters", s.grantMinter)
	admin.POST("/mint", s.adminMint)

	return r
}

func (s *Server) requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := strings.TrimSpace(c.GetHeader(identityHeader))
		if identity == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errors": "missing identity"})
			return
		}
		c.Set("identity", identity)
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if err := s.authorizer.CheckAdminToken(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errors": "invalid admin token"})
			return
		}
		c.Set("identity", s.authorizer.Admin())
		c.Next()
	}
}

func identityOf(c *gin.Context) string {
	return c.GetString("identity")
}

func tokenParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid id"})
		return 0, false
	}
	return id, true
}

// --- creatures ---

type mintRequest struct {
	SpeciesID uint64 `json:"species_id" binding:"required"`
}

func (s *Server) mintStarter(c *gin.Context) {
	var body mintRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request body"})
		return
	}
	tokenID, err := s.arena.MintStarter(c.Request.Context(), identityOf(c), body.SpeciesID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token_id": tokenID})
}

func (s *Server) mintCreature(c *gin.Context) {
	var body mintRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request body"})
		return
	}
	tokenID, err := s.arena.MintCreature(c.Request.Context(), identityOf(c), body.SpeciesID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token_id": tokenID})
}

func (s *Server) getCreature(c *gin.Context) {
	tokenID, ok := tokenParam(c)
	if !ok {
		return
	}
	cr, err := s.arena.GetCreature(tokenID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cr)
}

func (s *Server) listCreatures(c *gin.Context) {
	owner := c.Param("id")
	if c.Query("all") == "true" {
		c.JSON(http.StatusOK, gin.H{"token_ids": s.arena.TokensEverHeld(owner)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_ids": s.arena.CreaturesByOwner(owner)})
}

func (s *Server) train(c *gin.Context) {
	tokenID, ok := tokenParam(c)
	if !ok {
		return
	}
	if err := s.arena.Train(c.Request.Context(), identityOf(c), tokenID); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) rest(c *gin.Context) {
	tokenID, ok := tokenParam(c)
	if !ok {
		return
	}
	if err := s.arena.Rest(c.Request.Context(), identityOf(c), tokenID); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) wake(c *gin.Context) {
	tokenID, ok := tokenParam(c)
	if !ok {
		return
	}
	if err := s.arena.Wake(c.Request.Context(), identityOf(c), tokenID); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type transferRequest struct {
	To string `json:"to" binding:"required"`
}

func (s *Server) transferCreature(c *gin.Context) {
	tokenID, ok := tokenParam(c)
	if !ok {
		return
	}
	var body transferRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request body"})
		return
	}
	if err := s.arena.TransferCreature(c.Request.Context(), identityOf(c), tokenID, body.To); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type approveCreatureRequest struct {
	Operator string `json:"operator"`
}

func (s *Server) approveCreature(c *gin.Context) {
	tokenID, ok := tokenParam(c)
	if !ok {
		return
	}
	var body approveCreatureRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request body"})
		return
	}
	operator := body.Operator
	if operator == "" {
		operator = s.arena.EscrowIdentity()
	}
	if err := s.arena.ApproveCreature(c.Request.Context(), identityOf(c), tokenID, operator); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) removeCreature(c *gin.Context) {
	tokenID, ok := tokenParam(c)
	if !ok {
		return
	}
	if err := s.arena.RemoveCreature(c.Request.Context(), identityOf(c), tokenID); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// --- battles ---

type battleRequest struct {
	AttackerToken uint64 `json:"attacker_token" binding:"required"`
	DefenderToken uint64 `json:"defender_token" binding:"required"`
}

func (s *Server) battle(c *gin.Context) {
	var body battleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request body"})
		return
	}
	out, err := s.arena.Battle(c.Request.Context(), identityOf(c), body.AttackerToken, body.DefenderToken)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.arena.StatsOf(c.Param("id")))
}

// --- currency ---

type currencyTransferRequest struct {
	To     string `json:"to" binding:"required"`
	Amount uint64 `json:"amount" binding:"required,gt=0"`
}

func (s *Server) transferCurrency(c *gin.Context) {
	var body currencyTransferRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request body"})
		return
	}
	if err := s.arena.TransferCurrency(c.Request.Context(), identityOf(c), body.To, body.Amount); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type currencyApproveRequest struct {
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount" binding:"required,gt=0"`
}

func (s *Server) approveCurrency(c *gin.Context) {
	var body currencyApproveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request body"})
		return
	}
	spender := body.Spender
	if spender == "" {
		spender = s.arena.EscrowIdentity()
	}
	s.arena.ApproveCurrency(c.Request.Context(), identityOf(c), spender, body.Amount)
	c.Status(http.StatusOK)
}

func (s *Server) getBalance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"balance": s.arena.Balance(c.Param("id"))})
}

func (s *Server) getSupply(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"total_supply": s.arena.TotalSupply()})
}

type grantMinterRequest struct {
	Identity string `json:"identity" binding:"required"`
}

func (s *Server) grantMinter(c *gin.Context) {
	var body grantMinterRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request body"})
		return
	}
	if err := s.arena.GrantMinter(c.Request.Context(), identityOf(c), body.Identity); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type adminMintRequest struct {
	To     string `json:"to" binding:"required"`
	Amount uint64 `json:"amount" binding:"required,gt=0"`
}

func (s *Server) adminMint(c *gin.Context) {
	var body adminMintRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request body"})
		return
	}
	if err := s.arena.MintCurrency(c.Request.Context(), identityOf(c), body.To, body.Amount); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// --- marketplace ---

type listRequest struct {
	TokenID uint64 `json:"token_id" binding:"required"`
	Price   uint64 `json:"price" binding:"required"`
}

func (s *Server) listCreature(c *gin.Context) {
	var body listRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request body"})
		return
	}
	listingID, err := s.arena.ListCreature(c.Request.Context(), identityOf(c), body.TokenID, body.Price)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"listing_id": listingID})
}

func (s *Server) purchase(c *gin.Context) {
	listingID, ok := tokenParam(c)
	if !ok {
		return
	}
	if err := s.arena.PurchaseListing(c.Request.Context(), identityOf(c), listingID); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) cancel(c *gin.Context) {
	listingID, ok := tokenParam(c)
	if !ok {
		return
	}
	if err := s.arena.CancelListing(c.Request.Context(), identityOf(c), listingID); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) activeListings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"listings": s.arena.ActiveListings()})
}

func (s *Server) getListing(c *gin.Context) {
	listingID, ok := tokenParam(c)
	if !ok {
		return
	}
	listing, err := s.arena.GetListing(listingID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// --- leaderboard ---

func (s *Server) topBattlers(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid limit"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{"entries": s.arena.TopBattlers(limit)})
}

// handleError maps engine sentinels onto HTTP statuses.
func (s *Server) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, creature.ErrNotFound), errors.Is(err, market.ErrListingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"errors": err.Error()})
	case errors.Is(err, creature.ErrNotOwner),
		errors.Is(err, market.ErrNotSeller),
		errors.Is(err, creature.ErrUnauthorized),
		errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"errors": err.Error()})
	case errors.Is(err, market.ErrInvalidPrice), errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
	case errors.Is(err, creature.ErrCapacityExceeded),
		errors.Is(err, creature.ErrInsufficientStamina),
		errors.Is(err, creature.ErrIsResting),
		errors.Is(err, creature.ErrNotResting),
		errors.Is(err, creature.ErrStaminaFull),
		errors.Is(err, creature.ErrNotStarter),
		errors.Is(err, arena.ErrStarterClaimed),
		errors.Is(err, battle.ErrSelfBattle),
		errors.Is(err, market.ErrListingInactive),
		errors.Is(err, market.ErrAlreadyListed),
		errors.Is(err, market.ErrOwnListing),
		errors.Is(err, market.ErrNotApproved),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance):
		c.JSON(http.StatusConflict, gin.H{"errors": err.Error()})
	default:
		s.logger.Error("unhandled operation error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"errors": "internal server error"})
	}
}
