package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/hexwatt/internal/engine"
)

const (
	maxBodyBytes   = 4 << 10
	defaultHistory = 50
	maxHistory     = 500

	// limiterIdle is how long an idle client's rate-limit bucket survives a sweep.
	limiterIdle = 10 * time.Minute
)

type tileRequest struct {
	TileID int `json:"tile_id"`
}

type buildRequest struct {
	TileID   int    `json:"tile_id"`
	Building string `json:"building"`
}

type speedRequest struct {
	Speed float64 `json:"speed"`
}

// actionResponse is returned by every mutating endpoint.
type actionResponse struct {
	Receipt engine.Receipt  `json:"receipt"`
	State   engine.Snapshot `json:"state"`
}

func (s *Server) handleStatus(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := gin.H{
		"sessions":    s.Store.Len(),
		"uptime_s":    int(time.Since(s.started).Seconds()),
		"goroutines":  runtime.NumGoroutine(),
		"heap_mb":     mem.HeapAlloc >> 20,
		"ledger":      s.DB != nil,
		"catalog_len": s.Catalog.Len(),
	}
	if s.Eng != nil {
		status["tick"] = s.Eng.Tick()
		status["speed"] = s.Eng.Speed()
		status["tick_interval_ms"] = s.Eng.Interval.Milliseconds()
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleCatalog(c *gin.Context) {
	entries := s.Catalog.Entries()
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.BuildingDef
	}
	c.JSON(http.StatusOK, gin.H{"buildings": out})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	id, snap, err := s.Store.Create()
	if err != nil {
		writeError(c, err)
		return
	}
	slog.Info("session created", "session", id, "tiles", len(snap.Tiles))
	c.JSON(http.StatusCreated, gin.H{"session_id": id, "state": snap})
}

func (s *Server) handleGetSession(c *gin.Context) {
	var snap engine.Snapshot
	err := s.Store.With(c.Param("id"), func(sess *engine.Session) error {
		snap = sess.Snapshot()
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleTileQuote(c *gin.Context) {
	tileID, err := strconv.Atoi(c.Param("tile"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: tile id %q", errBadRequest, c.Param("tile")))
		return
	}
	var q engine.Quote
	err = s.Store.With(c.Param("id"), func(sess *engine.Session) error {
		q, err = sess.Quote(tileID)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) handleBuyTile(c *gin.Context) {
	var req tileRequest
	if err := s.bind(c, s.schemas.BuyTile, &req); err != nil {
		writeError(c, err)
		return
	}
	s.act(c, func(sess *engine.Session) (engine.Receipt, error) {
		return sess.PurchaseTile(req.TileID)
	})
}

func (s *Server) handleBuyBuilding(c *gin.Context) {
	var req buildRequest
	if err := s.bind(c, s.schemas.BuyBuilding, &req); err != nil {
		writeError(c, err)
		return
	}
	s.act(c, func(sess *engine.Session) (engine.Receipt, error) {
		return sess.ConstructBuilding(req.TileID, req.Building)
	})
}

func (s *Server) handleUpgradeBuilding(c *gin.Context) {
	var req tileRequest
	if err := s.bind(c, s.schemas.UpgradeBuilding, &req); err != nil {
		writeError(c, err)
		return
	}
	s.act(c, func(sess *engine.Session) (engine.Receipt, error) {
		return sess.UpgradeBuilding(req.TileID)
	})
}

// act applies one action under the session lock, then records it in the
// ledger and notifies stream subscribers.
func (s *Server) act(c *gin.Context, do func(*engine.Session) (engine.Receipt, error)) {
	id := c.Param("id")
	var resp actionResponse
	err := s.Store.With(id, func(sess *engine.Session) error {
		r, err := do(sess)
		if err != nil {
			return err
		}
		resp = actionResponse{Receipt: r, State: sess.Snapshot()}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if s.DB != nil {
		if err := s.DB.RecordAction(id, resp.Receipt, time.Now()); err != nil {
			slog.Warn("ledger write failed", "session", id, "action", resp.Receipt.Action, "error", err)
		}
	}
	s.Hub.Publish(id, Message{Type: "action", Tick: resp.State.Ticks, Payload: resp.Receipt})

	slog.Debug("action applied", "session", id, "action", resp.Receipt.Action,
		"tile", resp.Receipt.TileID, "price", resp.Receipt.Price)
	c.JSON(http.StatusOK, resp)
}

// bind reads the body, validates it against schema, and decodes it into out.
func (s *Server) bind(c *gin.Context, schema *jsonschema.Schema, out any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if err := decodeValidated(schema, body, out); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleHistory(c *gin.Context) {
	id := c.Param("id")
	if err := s.Store.View(id, func(*engine.Session) error { return nil }); err != nil {
		writeError(c, err)
		return
	}
	if s.DB == nil {
		c.JSON(http.StatusOK, gin.H{"actions": []any{}, "counts": gin.H{}})
		return
	}

	limit := defaultHistory
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, fmt.Errorf("%w: limit %q", errBadRequest, v))
			return
		}
		limit = min(n, maxHistory)
	}

	actions, err := s.DB.RecentActions(id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	counts, err := s.DB.ActionCounts(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions, "counts": counts})
}

// handleStream upgrades to a websocket that receives the session's state
// after every tick and a receipt after every action.
func (s *Server) handleStream(c *gin.Context) {
	id := c.Param("id")
	var snap engine.Snapshot
	err := s.Store.View(id, func(sess *engine.Session) error {
		snap = sess.Snapshot()
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "session", id, "error", err)
		return
	}
	sub := s.Hub.Subscribe(id, conn)
	s.Hub.SendTo(id, sub, Message{Type: "state", Tick: snap.Ticks, Payload: snap})
	sub.readLoop()
	s.Hub.Unsubscribe(id, sub)
}

func (s *Server) handleSweep(c *gin.Context) {
	ids := s.Sweep(limiterIdle)
	slog.Info("manual sweep", "evicted", len(ids))
	c.JSON(http.StatusOK, gin.H{"evicted": ids, "sessions": s.Store.Len()})
}

func (s *Server) handleSpeed(c *gin.Context) {
	if s.Eng == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody{Error: "no_engine", Message: "tick engine not running"})
		return
	}
	var req speedRequest
	if err := s.bind(c, s.schemas.Speed, &req); err != nil {
		writeError(c, err)
		return
	}
	old := s.Eng.Speed()
	s.Eng.SetSpeed(req.Speed)
	slog.Info("tick speed changed", "from", old, "to", req.Speed)
	c.JSON(http.StatusOK, gin.H{"speed": req.Speed, "previous": old})
}

func (s *Server) handleArchive(c *gin.Context) {
	if s.DB == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody{Error: "no_ledger", Message: "storage disabled"})
		return
	}
	snap, err := s.DB.LoadArchive(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
