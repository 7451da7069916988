// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/imu_tester/internal/acquire"
	"github.com/relabs-tech/imu_tester/internal/config"
	"github.com/relabs-tech/imu_tester/internal/report"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from a different port during development
	},
}

const (
	historySize  = 100
	writeTimeout = 2 * time.Second
)

// ResultStore keeps the latest result per scenario plus a bounded history,
// and fans new results out to websocket clients.
type ResultStore struct {
	mu      sync.RWMutex
	latest  map[string]acquire.RunResult
	history []acquire.RunResult
	clients map[*websocket.Conn]chan acquire.RunResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		latest:  make(map[string]acquire.RunResult),
		clients: make(map[*websocket.Conn]chan acquire.RunResult),
	}
}

// Add records res and forwards it to connected clients. Slow clients miss
// updates rather than block the MQTT callback.
func (s *ResultStore) Add(res acquire.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest[res.Scenario] = res
	s.history = append(s.history, res)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	for conn, ch := range s.clients {
		select {
		case ch <- res:
		default:
			log.Debugf("web: dropping update for %s", conn.RemoteAddr())
		}
	}
}

// Latest returns the most recent result of every scenario, sorted by name.
func (s *ResultStore) Latest() []acquire.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]acquire.RunResult, 0, len(s.latest))
	for _, r := range s.latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scenario < out[j].Scenario })
	return out
}

func (s *ResultStore) Get(name string) (acquire.RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[name]
	return r, ok
}

func (s *ResultStore) History() []acquire.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]acquire.RunResult(nil), s.history...)
}

func (s *ResultStore) attach(conn *websocket.Conn) chan acquire.RunResult {
	ch := make(chan acquire.RunResult, 16)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()
	return ch
}

func (s *ResultStore) detach(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
}

// NewRouter exposes the store over HTTP.
//
//	GET /api/results           latest result per scenario
//	GET /api/results/:scenario latest result of one scenario
//	GET /api/history           last results in arrival order
//	GET /ws                    live results as JSON messages
func NewRouter(store *ResultStore) *gin.Engine {
	router := gin.Default()

	router.GET("/api/results", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"results": store.Latest()})
	})
	router.GET("/api/history", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"results": store.History()})
	})
	router.GET("/api/results/:scenario", func(c *gin.Context) {
		res, ok := store.Get(c.Param("scenario"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no result yet"})
			return
		}
		c.JSON(http.StatusOK, res)
	})
	router.GET("/ws", func(c *gin.Context) {
		serveResultsWS(store, c.Writer, c.Request)
	})
	return router
}

// serveResultsWS sends the current results on connect and then every new
// one until the client goes away.
func serveResultsWS(store *ResultStore, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates := store.attach(conn)
	defer store.detach(conn)

	for _, res := range store.Latest() {
		if err := writeResult(conn, res); err != nil {
			return
		}
	}

	// the read loop only notices the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debugf("web: websocket error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case res := <-updates:
			if err := writeResult(conn, res); err != nil {
				log.Debugf("web: websocket write error: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}

func writeResult(conn *websocket.Conn, res acquire.RunResult) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(res)
}

// RunWeb serves the results dashboard API, fed from the MQTT results topic.
func RunWeb(cfg *config.Config) error {
	client, err := report.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Infof("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	store := NewResultStore()
	if err := report.Subscribe(client, cfg.TopicResults, store.Add); err != nil {
		return err
	}

	router := NewRouter(store)
	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Infof("web: server listening on %s", addr)
	return router.Run(addr)
}
