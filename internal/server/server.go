package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/franckalain/cropguard/internal/alerts"
	"github.com/franckalain/cropguard/internal/analytics"
	"github.com/franckalain/cropguard/internal/apperrors"
	"github.com/franckalain/cropguard/internal/catalog"
	"github.com/franckalain/cropguard/internal/community"
	"github.com/franckalain/cropguard/internal/history"
	"github.com/franckalain/cropguard/internal/kv"
	"github.com/franckalain/cropguard/internal/logging"
	"github.com/franckalain/cropguard/internal/ml"
	"github.com/franckalain/cropguard/internal/models"
	"github.com/franckalain/cropguard/internal/outbreaks"
	"github.com/franckalain/cropguard/internal/projector"
	"github.com/franckalain/cropguard/internal/report"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, this should be more restrictive
	},
}

// client is one websocket connection. gorilla connections allow a single
// concurrent writer, so writes go through mu.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Server serves the scan history over a websocket and a REST API
type Server struct {
	history    *history.Store
	catalog    *catalog.Catalog
	projector  *projector.Projector
	classifier ml.Classifier
	alerts     *alerts.Feed
	community  *community.Board
	outbreaks  *outbreaks.Map
	logger     *zap.Logger
	staticDir  string
	now        func() time.Time
	clients    sync.Map // id -> *client
}

// Option configures a Server
type Option func(*Server)

// WithAlerts replaces the sample alert feed
func WithAlerts(feed *alerts.Feed) Option {
	return func(s *Server) { s.alerts = feed }
}

// WithCommunity replaces the sample community board
func WithCommunity(board *community.Board) Option {
	return func(s *Server) { s.community = board }
}

// WithOutbreaks replaces the sample outbreak map
func WithOutbreaks(m *outbreaks.Map) Option {
	return func(s *Server) { s.outbreaks = m }
}

// WithStaticDir sets the directory served at /
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithClock sets the time source used for analytics and reports
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server. A nil logger disables logging.
func New(store *history.Store, cat *catalog.Catalog, classifier ml.Classifier, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		history:    store,
		catalog:    cat,
		projector:  projector.New(cat),
		classifier: classifier,
		logger:     logging.OrNop(logger),
		staticDir:  "./static",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.alerts == nil {
		s.alerts = alerts.SampleFeed(s.now)
	}
	if s.community == nil {
		s.community = community.SampleBoard(s.now)
	}
	if s.outbreaks == nil {
		s.outbreaks = outbreaks.SampleMap(s.now)
	}
	return s
}

// Watch broadcasts history_changed when another process rewrites the
// history held by w.
func (s *Server) Watch(w kv.Watcher) {
	w.OnChange(func(key string) {
		if key != history.Key {
			return
		}
		s.logger.Debug("History changed on disk")
		s.broadcast("history_changed", nil)
	})
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		s.closeClients()
		if err != nil {
			s.logger.Error("Server shutdown failed", zap.Error(err))
			return err
		}
		s.logger.Info("Server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}

func (s *Server) closeClients() {
	s.clients.Range(func(key, value any) bool {
		value.(*client).conn.Close()
		s.clients.Delete(key)
		return true
	})
}

// wsMessage is the envelope for both directions
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type idRequest struct {
	ID int64 `json:"id"`
}

type scanRequest struct {
	Image string `json:"image"`
}

type postRequest struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// ScanResult is the reply to a scan. Warning is set when the record could
// not be persisted.
type ScanResult struct {
	Record  models.ScanRecord        `json:"record"`
	View    projector.View           `json:"view"`
	Warning *apperrors.FrontendError `json:"warning,omitempty"`
}

// HistoryResponse pairs the records with their summary
type HistoryResponse struct {
	Items   []models.ScanRecord `json:"items"`
	Summary analytics.Summary   `json:"summary"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Store client connection
	clientID := uuid.New().String()
	c := &client{conn: conn}
	s.clients.Store(clientID, c)
	defer s.clients.Delete(clientID)
	s.logger.Debug("Client connected", zap.String("client_id", clientID))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Error reading message", zap.String("client_id", clientID), zap.Error(err))
			}
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendError(c, apperrors.ErrInvalidRequest.Wrap(err))
			continue
		}

		s.handleWebSocketMessage(r.Context(), c, msg)
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, c *client, msg wsMessage) {
	switch msg.Type {
	case "scan":
		var req scanRequest
		if err := decodeData(msg.Data, &req); err != nil {
			s.sendError(c, err)
			return
		}
		s.handleScan(ctx, c, req)
	case "get_history":
		s.sendMessage(c, "history", s.historyResponse(ctx))
	case "delete_scan":
		var req idRequest
		if err := decodeData(msg.Data, &req); err != nil {
			s.sendError(c, err)
			return
		}
		if err := s.history.DeleteByID(ctx, req.ID); err != nil {
			s.sendError(c, err)
			return
		}
		s.broadcast("history_changed", nil)
	case "clear_history":
		if err := s.history.Clear(ctx); err != nil {
			s.sendError(c, err)
			return
		}
		s.broadcast("history_changed", nil)
	case "view_treatment":
		view, err := s.view(ctx, msg.Data)
		if err != nil {
			s.sendError(c, err)
			return
		}
		s.sendMessage(c, "treatment", view)
	case "share_treatment":
		view, err := s.view(ctx, msg.Data)
		if err != nil {
			s.sendError(c, err)
			return
		}
		s.sendMessage(c, "share", map[string]string{"text": report.ShareText(*view)})
	case "get_posts":
		s.sendMessage(c, "posts", s.community.Posts())
	case "new_post":
		var req postRequest
		if err := decodeData(msg.Data, &req); err != nil {
			s.sendError(c, err)
			return
		}
		post, err := s.addPost(req)
		if err != nil {
			s.sendError(c, err)
			return
		}
		s.sendMessage(c, "post", post)
	case "get_outbreaks":
		var filter outbreaks.Filter
		if len(msg.Data) > 0 {
			if err := decodeData(msg.Data, &filter); err != nil {
				s.sendError(c, err)
				return
			}
		}
		s.sendMessage(c, "outbreaks", s.outbreaks.List(filter))
	case "add_outbreak":
		var req outbreaks.NewReport
		if err := decodeData(msg.Data, &req); err != nil {
			s.sendError(c, err)
			return
		}
		ob, err := s.addOutbreak(req)
		if err != nil {
			s.sendError(c, err)
			return
		}
		s.sendMessage(c, "outbreak", ob)
	default:
		s.sendError(c, apperrors.ErrInvalidRequest.WithContext("type", msg.Type).WithUserMessage("Unknown message type"))
	}
}

func (s *Server) handleScan(ctx context.Context, c *client, req scanRequest) {
	result, err := s.scan(ctx, req.Image)
	if err != nil {
		s.sendError(c, err)
		return
	}
	if result.Warning != nil {
		s.sendMessage(c, "notification", result.Warning)
	}
	s.sendMessage(c, "scan_result", result)
}

func (s *Server) view(ctx context.Context, data json.RawMessage) (*projector.View, error) {
	var req idRequest
	if err := decodeData(data, &req); err != nil {
		return nil, err
	}
	rec, err := s.history.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	v := s.projector.Project(*rec)
	return &v, nil
}

// scan classifies the image, records the result and returns both the
// record and its view. A storage failure is reported in Warning, not as an
// error: the diagnosis is still shown.
func (s *Server) scan(ctx context.Context, image string) (*ScanResult, error) {
	imageData, err := decodeImage(image)
	if err != nil {
		return nil, err
	}

	diagnosis, err := s.classifier.Classify(ctx, imageData)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Classified image",
		zap.String("disease", diagnosis.Name),
		zap.String("confidence", diagnosis.Confidence),
		zap.String("severity", string(diagnosis.Severity)))

	rec, err := s.history.Insert(ctx, models.ScanInput{ImageData: image, Diagnosis: *diagnosis})
	if rec == nil {
		return nil, err
	}

	result := &ScanResult{Record: *rec, View: s.projector.Project(*rec)}
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			appErr.Log(s.logger)
		}
		result.Warning = apperrors.ToFrontendError(err)
		return result, nil
	}
	s.broadcast("history_changed", nil)
	return result, nil
}

// addPost adds to the board and tells every client to reload it
func (s *Server) addPost(req postRequest) (community.Post, error) {
	post, err := s.community.Add(req.Author, req.Content)
	if err != nil {
		return community.Post{}, apperrors.ErrInvalidRequest.Wrap(err).WithUserMessage("Write something before posting")
	}
	s.broadcast("posts_changed", nil)
	return post, nil
}

func (s *Server) addOutbreak(req outbreaks.NewReport) (outbreaks.Report, error) {
	ob, err := s.outbreaks.Add(req)
	if err != nil {
		return outbreaks.Report{}, apperrors.ErrInvalidRequest.Wrap(err)
	}
	s.logger.Info("Outbreak reported",
		zap.String("id", ob.ID),
		zap.String("disease", ob.DiseaseType),
		zap.String("severity", ob.Severity))
	s.broadcast("outbreaks_changed", nil)
	return ob, nil
}

func (s *Server) historyResponse(ctx context.Context) HistoryResponse {
	items := s.history.List(ctx)
	return HistoryResponse{Items: items, Summary: analytics.Summarize(items, s.now())}
}

// decodeImage accepts raw base64 or a data URI
func decodeImage(image string) ([]byte, error) {
	payload := image
	if strings.HasPrefix(image, "data:") {
		_, after, ok := strings.Cut(image, ",")
		if !ok {
			return nil, apperrors.ErrInvalidImage.WithContext("reason", "data uri without payload")
		}
		payload = after
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperrors.ErrInvalidImage.Wrap(err)
	}
	if len(data) == 0 {
		return nil, apperrors.ErrInvalidImage.WithContext("reason", "empty image")
	}
	return data, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperrors.ErrInvalidRequest.WithContext("reason", "missing data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.ErrInvalidRequest.Wrap(err)
	}
	return nil
}

func (s *Server) sendMessage(c *client, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}

	s.logger.Debug("Sending message to client", zap.String("type", messageType))
	if err := c.writeJSON(msg); err != nil {
		s.logger.Warn("Error sending message", zap.String("type", messageType), zap.Error(err))
	}
}

func (s *Server) sendError(c *client, err error) {
	if appErr, ok := apperrors.As(err); ok {
		appErr.Log(s.logger)
	} else {
		s.logger.Error("Request failed", zap.Error(err))
	}

	fe := apperrors.ToFrontendError(err)
	msg := map[string]any{
		"type": "error",
		"data": map[string]string{"message": fe.Message, "code": fe.Code},
	}
	if err := c.writeJSON(msg); err != nil {
		s.logger.Warn("Error sending error message", zap.Error(err))
	}
}

func (s *Server) broadcast(messageType string, data any) {
	s.clients.Range(func(_, value any) bool {
		s.sendMessage(value.(*client), messageType, data)
		return true
	})
}
