// Package protocol implements the line-oriented protocol handler:
// IAMAT, WHATSAT, AT, and the `? <line>` invalid-command fallback
// (spec.md §4.1).
package protocol

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heitortanoue/serverherd/internal/config"
	"github.com/heitortanoue/serverherd/internal/flood"
	"github.com/heitortanoue/serverherd/internal/logging"
	"github.com/heitortanoue/serverherd/internal/metrics"
	"github.com/heitortanoue/serverherd/internal/model"
	"github.com/heitortanoue/serverherd/internal/places"
	"github.com/heitortanoue/serverherd/internal/store"
)

const (
	minRadiusKM   = 0.0
	maxRadiusKM   = 50.0
	minMaxResults = 1
	maxMaxResults = 20
)

// Handler dispatches one accepted connection's lines. A Handler is
// shared by every ClientSession; it holds no per-connection state of
// its own.
type Handler struct {
	view    *config.View
	store   *store.Store
	flood   *flood.Engine
	places  *places.Client
	log     *logging.Logger
	metrics *metrics.Registry

	now func() time.Time
}

// New creates a Handler. now defaults to time.Now if nil; tests supply a
// fixed clock to make IAMAT's rendered time_skew deterministic.
func New(view *config.View, s *store.Store, fe *flood.Engine, pc *places.Client, log *logging.Logger, reg *metrics.Registry, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{view: view, store: s, flood: fe, places: pc, log: log, metrics: reg, now: now}
}

// HandleConnection owns one ClientSession end to end: reads LF-terminated
// lines, dispatches each, and writes replies in request order, until the
// client closes the connection, ctx is canceled, or framing cannot be
// resynchronized. sourceTag is flood.LocalSource for an ordinary client
// connection, or the neighbor name identified for a peer-originated one
// (see herd.identifyPeer).
func (h *Handler) HandleConnection(ctx context.Context, conn net.Conn, sourceTag string) {
	sessionID := uuid.New().String()[:8]
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	reader := bufio.NewScanner(conn)
	reader.Buffer(make([]byte, 0, 4096), 1<<20)
	writer := bufio.NewWriter(conn)

	for reader.Scan() {
		line := strings.TrimRight(reader.Text(), "\r")
		reply, logged := h.handleLine(ctx, line, sourceTag, sessionID)
		if logged != "" && h.log != nil {
			h.log.Infof("session=%s %s", sessionID, logged)
		}
		if reply == "" {
			continue
		}
		if _, err := writer.WriteString(reply); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
	}
}

// handleLine tokenizes and dispatches one line, returning the text to
// write back (possibly empty, for AT) and a short description for the
// log.
func (h *Handler) handleLine(ctx context.Context, line, sourceTag, sessionID string) (reply, logMsg string) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return "", ""
	}

	switch tokens[0] {
	case "IAMAT":
		return h.handleIAMAT(tokens, line)
	case "WHATSAT":
		return h.handleWHATSAT(ctx, tokens, line)
	case "AT":
		return h.handleAT(tokens, line, sourceTag)
	default:
		h.metrics.Incr(metrics.ProtocolInvalidInput)
		return invalidReply(line), "invalid command: " + line
	}
}

func invalidReply(line string) string {
	return "? " + line + "\n"
}

func (h *Handler) handleIAMAT(tokens []string, line string) (string, string) {
	if len(tokens) != 4 {
		h.metrics.Incr(metrics.ProtocolInvalidInput)
		return invalidReply(line), "malformed IAMAT: " + line
	}

	clientID, coords, tsRaw := tokens[1], tokens[2], tokens[3]

	if _, _, ok := model.ParseCoords(coords); !ok {
		h.metrics.Incr(metrics.ProtocolInvalidInput)
		return invalidReply(line), "malformed IAMAT coords: " + line
	}
	ts, ok := model.ParseFiniteFloat(tsRaw)
	if !ok {
		h.metrics.Incr(metrics.ProtocolInvalidInput)
		return invalidReply(line), "malformed IAMAT timestamp: " + line
	}

	rec := model.NewFromIAMAT(h.view.OwnName, h.now(), clientID, coords, tsRaw, ts)
	h.flood.Apply(rec, flood.LocalSource)

	return rec.RawATLine + "\n", "IAMAT " + clientID + " -> " + rec.RawATLine
}

func (h *Handler) handleWHATSAT(ctx context.Context, tokens []string, line string) (string, string) {
	if len(tokens) != 4 {
		h.metrics.Incr(metrics.ProtocolInvalidInput)
		return invalidReply(line), "malformed WHATSAT: " + line
	}

	clientID := tokens[1]

	radius, ok := model.ParseFiniteFloat(tokens[2])
	if !ok || radius <= minRadiusKM || radius > maxRadiusKM {
		h.metrics.Incr(metrics.ProtocolInvalidInput)
		return invalidReply(line), "out-of-range WHATSAT radius: " + line
	}

	maxResults, err := strconv.Atoi(tokens[3])
	if err != nil || maxResults < minMaxResults || maxResults > maxMaxResults {
		h.metrics.Incr(metrics.ProtocolInvalidInput)
		return invalidReply(line), "out-of-range WHATSAT max_results: " + line
	}

	rec, ok := h.store.Get(clientID)
	if !ok {
		h.metrics.Incr(metrics.ProtocolInvalidInput)
		return invalidReply(line), "WHATSAT for unknown client: " + line
	}

	lat, lon, ok := model.ParseCoords(rec.Coords)
	if !ok {
		// The store only ever holds records built from valid coords;
		// reaching here means a bug elsewhere, not a client error.
		return invalidReply(line), "stored record has unparseable coords for " + clientID
	}

	timeout := h.view.WhatsatTimeoutDuration()
	dctx, cancel := places.DeadlineFrom(ctx, timeout)
	defer cancel()

	body, err := h.places.Lookup(dctx, lat, lon, radius)
	if err != nil {
		if h.log != nil {
			h.log.Warnf("places lookup failed for %s: %v", clientID, err)
		}
		return rec.RawATLine + "\n{}\n\n", "WHATSAT " + clientID + " -> places failure, degraded reply"
	}

	payload := truncateResults(body, maxResults)
	response := rec.RawATLine + "\n" + strings.TrimRight(string(payload), " \t\r\n") + "\n\n"
	return response, "WHATSAT " + clientID + " -> places success"
}

func (h *Handler) handleAT(tokens []string, line, sourceTag string) (string, string) {
	rec, err := model.ParseAT(tokens)
	if err != nil {
		h.metrics.Incr(metrics.ProtocolInvalidInput)
		return invalidReply(line), "malformed AT: " + line
	}

	h.flood.Apply(rec, sourceTag)
	return "", "AT " + rec.ClientID + " from " + sourceTag
}
