// @title           OHLCV Backfill API
// @version         1.0
// @description     Loads daily OHLCV history for crypto assets and French equities and serves it back.

// @contact.name   API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	appinterfaces "marketdata-backfill/internal/application/interfaces"
	appingestion "marketdata-backfill/internal/application/service/ingestion"
	appmarketdata "marketdata-backfill/internal/application/service/marketdata"
	"marketdata-backfill/internal/domain/entity/ohlcv"
	infracache "marketdata-backfill/internal/infrastructure/cache"
)

const apiBasePath = "/api/v1"

var (
	errMissingSymbol    = errors.New("symbol query param required")
	errMissingStartDate = errors.New("start_date query param required")
)

type Handler struct {
	router      *gin.Engine
	ingestion   *appingestion.Service
	marketdata  *appmarketdata.Service
	cache       *redis.Client
	cacheTTL    time.Duration
	invalidator *infracache.Invalidator
	logger      logrus.FieldLogger
	now         func() time.Time
}

var _ appinterfaces.HTTPHandler = (*Handler)(nil)

func NewHandler(ing *appingestion.Service, md *appmarketdata.Service, cache *redis.Client, cacheTTL time.Duration, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:     router,
		ingestion:  ing,
		marketdata: md,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger.WithField("component", "http"),
		now:        time.Now,
	}
	h.invalidator = infracache.NewInvalidator(cache, logger)
	router.Use(h.requestLogger(), corsMiddleware())
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/", h.root)
	h.router.GET("/health", h.health)
	h.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := h.router.Group(apiBasePath)
	{
		api.GET("/symbols", h.getSymbols)
		api.POST("/ingest", h.ingest)

		cached := api.Group("")
		if h.cache != nil {
			cached.Use(h.cacheMiddleware())
		}
		cached.GET("/data/:class/:symbol", h.getData)
		cached.GET("/stats", h.getStats)
	}

	// Per-class routes kept for clients of the original API layout.
	for _, prefix := range []string{"crypto", "stocks"} {
		class, _ := ohlcv.ParseAssetClass(prefix)
		group := api.Group("/" + prefix)
		group.Use(withClass(class))
		if h.cache != nil {
			group.Use(h.cacheMiddleware())
		}
		group.GET("/symbols", h.getSymbols)
		group.POST("/load", h.ingest)
		group.GET("/data/:symbol", h.getData)
	}
}

const classKey = "asset_class"

func withClass(class ohlcv.AssetClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(classKey, class)
		c.Next()
	}
}

// assetClass resolves the class from the route group, the :class path param or ?class=.
func assetClass(c *gin.Context) (ohlcv.AssetClass, error) {
	if v, ok := c.Get(classKey); ok {
		return v.(ohlcv.AssetClass), nil
	}
	raw := c.Param("class")
	if raw == "" {
		raw = c.Query("class")
	}
	if raw == "" {
		return "", errors.New("class query param required")
	}
	return ohlcv.ParseAssetClass(raw)
}

// root godoc
// @Summary      Service banner
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       / [get]
func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "OHLCV Backfill API", "status": "running"})
}

// health godoc
// @Summary      Liveness probe
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// getSymbols godoc
// @Summary      List supported symbols
// @Description  Symbols of an asset class in catalog order
// @Tags         symbols
// @Produce      json
// @Param        class  query     string  true  "Asset class (crypto or stocks)"
// @Success      200    {array}   string
// @Failure      400    {object}  map[string]string
// @Router       /symbols [get]
func (h *Handler) getSymbols(c *gin.Context) {
	class, err := assetClass(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	symbols, err := h.marketdata.Symbols(class)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, symbols)
}

type ingestResponse struct {
	Status        string `json:"status"`
	Class         string `json:"class"`
	Symbol        string `json:"symbol"`
	RecordsLoaded int    `json:"records_loaded"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
}

// ingest godoc
// @Summary      Backfill a symbol
// @Description  Fetches daily bars from the upstream providers and stores them. end_date defaults to today.
// @Tags         ingestion
// @Produce      json
// @Param        class       query     string  true   "Asset class (crypto or stocks)"
// @Param        symbol      query     string  true   "Symbol, e.g. BTC-USD or MC.PA"
// @Param        start_date  query     string  true   "YYYY-MM-DD"
// @Param        end_date    query     string  false  "YYYY-MM-DD"
// @Success      200         {object}  ingestResponse
// @Failure      400         {object}  map[string]string
// @Failure      500         {object}  map[string]string
// @Router       /ingest [post]
func (h *Handler) ingest(c *gin.Context) {
	class, err := assetClass(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		writeError(c, http.StatusBadRequest, errMissingSymbol)
		return
	}
	startRaw := c.Query("start_date")
	if startRaw == "" {
		writeError(c, http.StatusBadRequest, errMissingStartDate)
		return
	}
	from, err := ohlcv.ParseDate(startRaw)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	to := ohlcv.Day(h.now().UTC())
	if endRaw := c.Query("end_date"); endRaw != "" {
		if to, err = ohlcv.ParseDate(endRaw); err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
	}

	records, err := h.ingestion.Load(c.Request.Context(), class, symbol, from, to)
	if err != nil {
		if errors.Is(err, appingestion.ErrInvalidRequest) {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if len(records) > 0 {
		if _, err := h.invalidator.InvalidateClass(c.Request.Context(), class); err != nil {
			h.logger.WithError(err).Warn("cache invalidation failed")
		}
	}

	c.JSON(http.StatusOK, ingestResponse{
		Status:        "success",
		Class:         class.String(),
		Symbol:        symbol,
		RecordsLoaded: len(records),
		StartDate:     from.Format(ohlcv.DateLayout),
		EndDate:       to.Format(ohlcv.DateLayout),
	})
}

// getData godoc
// @Summary      Stored records of a symbol
// @Description  Newest first. Dates are inclusive bounds.
// @Tags         data
// @Produce      json
// @Param        class       path      string  true   "Asset class (crypto or stocks)"
// @Param        symbol      path      string  true   "Symbol"
// @Param        start_date  query     string  false  "YYYY-MM-DD"
// @Param        end_date    query     string  false  "YYYY-MM-DD"
// @Param        limit       query     int     false  "Maximum rows (default 1000)"
// @Success      200         {array}   ohlcv.Record
// @Failure      400         {object}  map[string]string
// @Failure      500         {object}  map[string]string
// @Router       /data/{class}/{symbol} [get]
func (h *Handler) getData(c *gin.Context) {
	class, err := assetClass(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	from, err := parseOptionalDate(c, "start_date")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	to, err := parseOptionalDate(c, "end_date")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	limit := appmarketdata.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			writeError(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
	}

	records, err := h.marketdata.GetRecords(c.Request.Context(), class, c.Param("symbol"), from, to, limit)
	if err != nil {
		if errors.Is(err, appmarketdata.ErrInvalidLimit) || errors.Is(err, appmarketdata.ErrSymbolMissing) {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

type statsResponse struct {
	Crypto ohlcv.Stats `json:"crypto"`
	Stocks ohlcv.Stats `json:"stocks"`
}

// getStats godoc
// @Summary      Storage statistics
// @Tags         data
// @Produce      json
// @Success      200  {object}  statsResponse
// @Failure      500  {object}  map[string]string
// @Router       /stats [get]
func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.marketdata.Stats(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, statsResponse{
		Crypto: stats[ohlcv.ClassCrypto],
		Stocks: stats[ohlcv.ClassStock],
	})
}

func parseOptionalDate(c *gin.Context, key string) (time.Time, error) {
	value := c.Query(key)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := ohlcv.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
