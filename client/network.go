package main

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

var (
	ErrNotConnected     = errors.New("not connected")
	ErrConnectionClosed = errors.New("connection closed before reply")
)

// Network is the client side of the action endpoint. Requests are
// multiplexed over one websocket and matched to replies by id. The
// connection is dialled on first use and redialled on the next call after
// it breaks.
type Network struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	pending map[uint64]chan *model.Response
	closed  bool

	writeMu sync.Mutex
}

func NewNetwork(host string) *Network {
	return &Network{
		url:     endpointURL(host),
		dialer:  websocket.DefaultDialer,
		pending: make(map[uint64]chan *model.Response),
	}
}

// endpointURL accepts host, host:port or a full ws:// URL.
func endpointURL(host string) string {
	if strings.HasPrefix(host, "ws://") || strings.HasPrefix(host, "wss://") {
		return host
	}
	// Default port 8999 if not specified
	if !strings.Contains(host, ":") {
		host = host + ":8999"
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	return u.String()
}

// Call sends action with payload and waits for the matching reply or for ctx
// to end. Any returned error is a transport failure.
func (n *Network) Call(ctx context.Context, action model.Action, payload interface{}) (*model.Response, error) {
	postData, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}

	conn, err := n.connection(ctx)
	if err != nil {
		return nil, err
	}

	id, reply := n.register()
	defer n.unregister(id)

	req := model.Request{ID: id, Action: action, PostData: string(postData)}
	if err := n.write(conn, req); err != nil {
		n.drop(conn, err)
		return nil, errors.Wrapf(err, "send %s", action)
	}

	select {
	case resp, ok := <-reply:
		if !ok || resp == nil {
			return nil, ErrConnectionClosed
		}
		return resp, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "wait for %s", action)
	}
}

// Close shuts the connection down. Calls after Close fail with
// ErrNotConnected.
func (n *Network) Close() {
	n.mu.Lock()
	n.closed = true
	conn := n.conn
	n.mu.Unlock()
	if conn != nil {
		n.drop(conn, nil)
	}
}

func (n *Network) connection(ctx context.Context) (*websocket.Conn, error) {
	n.mu.Lock()
	closed, conn := n.closed, n.conn
	n.mu.Unlock()

	if closed {
		return nil, ErrNotConnected
	}
	if conn != nil {
		return conn, nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "connection",
		"url":      n.url,
	}).Info("Connecting")

	// n.mu is not held while dialling.
	dialed, _, err := n.dialer.DialContext(ctx, n.url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", n.url)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		dialed.Close()
		return nil, ErrNotConnected
	}
	if n.conn != nil {
		// Another call connected first.
		dialed.Close()
		return n.conn, nil
	}
	n.conn = dialed
	go n.readLoop(dialed)
	return dialed, nil
}

func (n *Network) register() (uint64, chan *model.Response) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	ch := make(chan *model.Response, 1)
	n.pending[n.nextID] = ch
	return n.nextID, ch
}

func (n *Network) unregister(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.pending, id)
}

func (n *Network) write(conn *websocket.Conn, req model.Request) error {
	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(req)
}

func (n *Network) readLoop(conn *websocket.Conn) {
	for {
		var resp model.Response
		if err := conn.ReadJSON(&resp); err != nil {
			n.drop(conn, err)
			return
		}

		n.mu.Lock()
		ch, ok := n.pending[resp.ID]
		delete(n.pending, resp.ID)
		n.mu.Unlock()

		if !ok {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"id":       resp.ID,
			}).Debug("Reply for unknown request")
			continue
		}
		ch <- &resp
	}
}

// drop closes conn and fails every call waiting on it. It is a no-op if conn
// was already replaced.
func (n *Network) drop(conn *websocket.Conn, cause error) {
	n.mu.Lock()
	if n.conn != conn {
		n.mu.Unlock()
		return
	}
	n.conn = nil
	pending := n.pending
	n.pending = make(map[uint64]chan *model.Response)
	n.mu.Unlock()

	conn.Close()
	for _, ch := range pending {
		close(ch)
	}

	if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure) {
		logrus.WithFields(logrus.Fields{
			"function": "drop",
			"error":    cause.Error(),
		}).Warn("Connection lost")
	}
}
