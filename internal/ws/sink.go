package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var (
	errSinkClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("send buffer full")
)

// connSink queues outbound messages for one connection. A single write
// pump owns all writes to the socket.
type connSink struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newConnSink(conn *websocket.Conn, buffer int) *connSink {
	return &connSink{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Send never blocks. A full buffer closes the connection.
func (s *connSink) Send(data []byte) error {
	select {
	case <-s.done:
		return errSinkClosed
	default:
	}
	select {
	case s.send <- data:
		return nil
	default:
		s.close()
		return errSlowConsumer
	}
}

func (s *connSink) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *connSink) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.close()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
