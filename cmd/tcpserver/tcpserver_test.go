package tcpserver

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/taskpool"
)

type echoHandler struct {
	mu     sync.Mutex
	served int
}

func (h *echoHandler) Serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	h.mu.Lock()
	h.served++
	h.mu.Unlock()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}

	_, _ = conn.Write([]byte(strings.ToUpper(line)))
}

func startServer(t *testing.T, pool Pool, h SessionHandler) (*Server, string, chan error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(pool, h, zerolog.Nop())
	errc := make(chan error, 1)

	go func() {
		errc <- srv.Serve(context.Background(), ln)
	}()

	return srv, ln.Addr().String(), errc
}

func TestServeSubmitsEachConnection(t *testing.T) {
	t.Parallel()

	pool, err := taskpool.New(2, zerolog.Nop())
	require.NoError(t, err)

	h := &echoHandler{}
	srv, addr, errc := startServer(t, pool, h)

	for i := 0; i < 5; i++ {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)

		_, err = conn.Write([]byte("ping\n"))
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		reply, err := bufio.NewReader(conn).ReadString('\n')
		require.NoError(t, err)
		require.Equal(t, "PING\n", reply)
		require.NoError(t, conn.Close())
	}

	require.NoError(t, srv.Close())
	require.NoError(t, <-errc)

	pool.Shutdown()
	pool.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Equal(t, 5, h.served)
}

func TestRejectedConnectionIsClosed(t *testing.T) {
	t.Parallel()

	pool, err := taskpool.New(1, zerolog.Nop())
	require.NoError(t, err)

	pool.Shutdown()
	pool.Wait()

	srv, addr, errc := startServer(t, pool, &echoHandler{})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, err = bufio.NewReader(conn).ReadString('\n')
	require.Error(t, err)
	require.NoError(t, conn.Close())

	require.NoError(t, srv.Close())
	require.NoError(t, <-errc)
}

func TestCloseBeforeServe(t *testing.T) {
	t.Parallel()

	srv := New(nil, nil, zerolog.Nop())
	require.NoError(t, srv.Close())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	require.NoError(t, srv.Serve(context.Background(), ln))
}

func TestQueuedConnectionClosedOnShutdown(t *testing.T) {
	t.Parallel()

	pool, err := taskpool.New(1, zerolog.Nop())
	require.NoError(t, err)

	busy := make(chan struct{})
	release := make(chan struct{})

	require.NoError(t, pool.Submit(func() {
		close(busy)
		<-release
	}))
	<-busy

	srv, addr, errc := startServer(t, pool, &echoHandler{})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	defer conn.Close()

	require.Eventually(t, func() bool { return pool.Pending() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Close())
	require.NoError(t, <-errc)

	pool.Shutdown()
	close(release)
	pool.Wait()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, err = bufio.NewReader(conn).ReadString('\n')
	require.ErrorIs(t, err, io.EOF)
}
