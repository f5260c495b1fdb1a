package server_test

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nicolagi/dinokv/client"
	"github.com/nicolagi/dinokv/server"
	"github.com/nicolagi/dinokv/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer(t *testing.T) {
	t.Run("can be shutdown right after start", func(t *testing.T) {
		_, _, cleanup := newDisposableServer(t)
		defer cleanup()
	})
	t.Run("ping pong", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t)
		defer cleanup()
		c := newAttachedClient(t, address)
		defer c.Close()
		for i := 0; i < 10; i++ {
			assertReply(t, c, "PING", "PONG")
		}
		assertReply(t, c, "ping", "PONG")
	})
	t.Run("echo preserves internal whitespace", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t)
		defer cleanup()
		c := newAttachedClient(t, address)
		defer c.Close()
		assertReply(t, c, "ECHO a b  c", "a b  c")
		assertReply(t, c, "ECHO", "ERR usage")
	})
	t.Run("get of a key never set", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t)
		defer cleanup()
		c := newAttachedClient(t, address)
		defer c.Close()
		assertReply(t, c, "GET nobody", "NULL")
	})
	t.Run("one client sets, another one gets", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t)
		defer cleanup()
		c1 := newAttachedClient(t, address)
		defer c1.Close()
		c2 := newAttachedClient(t, address)
		defer c2.Close()
		assertReply(t, c1, "SET username glenda the good", "OK")
		assertReply(t, c1, "GET username", "glenda the good")
		assertReply(t, c2, "GET username", "glenda the good")
		assertReply(t, c2, "SET username rob", "OK")
		assertReply(t, c1, "GET username", "rob")
	})
	t.Run("protocol errors leave the connection usable", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t)
		defer cleanup()
		c := newAttachedClient(t, address)
		defer c.Close()
		assertReply(t, c, "FOO", "ERR unknown")
		assertReply(t, c, "PING", "PONG")
		assertReply(t, c, "", "ERR empty")
		assertReply(t, c, "SET lonely", "ERR usage")
		assertReply(t, c, "GET", "ERR usage")
		assertReply(t, c, "PING", "PONG")
	})
	t.Run("command split across two writes", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t)
		defer cleanup()
		conn, r := dialRaw(t, address)
		defer conn.Close()
		_, err := conn.Write([]byte("SET a"))
		require.Nil(t, err)
		time.Sleep(20 * time.Millisecond)
		_, err = conn.Write([]byte(" b\n"))
		require.Nil(t, err)
		assert.Equal(t, "OK\n", readLine(t, r))
		_, err = conn.Write([]byte("GET a\r\n"))
		require.Nil(t, err)
		assert.Equal(t, "b\n", readLine(t, r))
	})
	t.Run("pipelined requests are answered in order", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t)
		defer cleanup()
		conn, r := dialRaw(t, address)
		defer conn.Close()
		_, err := conn.Write([]byte("PING\nSET k v w\nGET k\nFOO\nECHO  x \nGET k\n"))
		require.Nil(t, err)
		for _, want := range []string{"PONG", "OK", "v w", "ERR unknown", " x ", "v w"} {
			assert.Equal(t, want+"\n", readLine(t, r))
		}
	})
	t.Run("large value spanning many reads", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t)
		defer cleanup()
		c := newAttachedClient(t, address)
		defer c.Close()
		value := strings.Repeat("0123456789", 10000)
		assertReply(t, c, "SET big "+value, "OK")
		assertReply(t, c, "GET big", value)
	})
	t.Run("concurrent sets to one key leave one of the values", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t)
		defer cleanup()
		const clients = 8
		values := make(map[string]bool)
		var wg sync.WaitGroup
		for i := 0; i < clients; i++ {
			value := strings.Repeat(fmt.Sprintf("%c", 'a'+i), 512)
			values[value] = true
			c := newAttachedClient(t, address)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer c.Close()
				for j := 0; j < 100; j++ {
					reply, err := c.Do("SET shared " + value)
					assert.Nil(t, err)
					assert.Equal(t, "OK", reply)
				}
			}()
		}
		wg.Wait()
		c := newAttachedClient(t, address)
		defer c.Close()
		reply, err := c.Do("GET shared")
		require.Nil(t, err)
		assert.True(t, values[reply], "unexpected value %.20q...", reply)
	})
}

func TestServerWithBoundedWorkers(t *testing.T) {
	t.Run("more connections than workers are served in turn", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t, server.WithWorkers(2))
		defer cleanup()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			c := newAttachedClient(t, address)
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer c.Close()
				key := fmt.Sprintf("key%d", i)
				assertReply(t, c, "SET "+key+" value", "OK")
				assertReply(t, c, "GET "+key, "value")
			}(i)
		}
		wg.Wait()
	})
	t.Run("idle connection holds its worker", func(t *testing.T) {
		srv, address, cleanup := newDisposableServer(t, server.WithWorkers(1))
		defer cleanup()
		c1 := newAttachedClient(t, address)
		assertReply(t, c1, "PING", "PONG")
		c2 := newAttachedClient(t, address)
		defer c2.Close()
		require.Nil(t, c2.Send("PING"))
		assert.Eventually(t, func() bool { return srv.Pending() == 1 }, time.Second, 5*time.Millisecond)
		require.Nil(t, c1.Close())
		reply, err := c2.Receive()
		require.Nil(t, err)
		assert.Equal(t, "PONG", reply)
	})
}

func TestServerShutdown(t *testing.T) {
	t.Run("queued and in-flight connections complete", func(t *testing.T) {
		srv := server.New(
			server.WithAddress("localhost:0"),
			server.WithWorkers(1),
		)
		address, err := srv.Listen()
		require.Nil(t, err)
		errc := make(chan error, 1)
		go func() {
			errc <- srv.Serve()
		}()

		// c1 occupies the only worker, c2 waits in the queue.
		c1 := newAttachedClient(t, address)
		assertReply(t, c1, "SET genre jazz", "OK")
		c2 := newAttachedClient(t, address)
		require.Nil(t, c2.Send("GET genre"))
		require.Eventually(t, func() bool { return srv.Pending() == 1 }, time.Second, 5*time.Millisecond)

		require.Nil(t, srv.Shutdown())

		// No new connections.
		_, err = net.DialTimeout("tcp", address, time.Second)
		assert.NotNil(t, err)

		// In-flight connection still works.
		assertReply(t, c1, "PING", "PONG")
		select {
		case <-errc:
			t.Fatal("serve returned while a connection was still being served")
		case <-time.After(50 * time.Millisecond):
		}
		require.Nil(t, c1.Close())

		// Queued connection gets served.
		reply, err := c2.Receive()
		require.Nil(t, err)
		assert.Equal(t, "jazz", reply)
		require.Nil(t, c2.Close())

		select {
		case err := <-errc:
			assert.Nil(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("serve did not return after workers drained")
		}
	})
	t.Run("shutdown before listen", func(t *testing.T) {
		srv := server.New()
		assert.Equal(t, server.ErrNotListening, srv.Shutdown())
		assert.Equal(t, server.ErrNotListening, srv.Serve())
	})
	t.Run("wildcard address listens on ipv4 only", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t, server.WithAddress(":0"))
		defer cleanup()
		host, _, err := net.SplitHostPort(address)
		require.Nil(t, err)
		assert.Equal(t, "0.0.0.0", host)
	})
	t.Run("listen on a busy address fails", func(t *testing.T) {
		_, address, cleanup := newDisposableServer(t)
		defer cleanup()
		srv2 := server.New(server.WithAddress(address))
		_, err := srv2.Listen()
		assert.NotNil(t, err)
	})
}

func newDisposableServer(t *testing.T, opts ...server.Option) (srv *server.Server, address string, cleanup func()) {
	opts = append([]server.Option{
		server.WithAddress("localhost:0"),
		server.WithStore(storage.NewInMemoryStore()),
	}, opts...)
	srv = server.New(opts...)
	address, err := srv.Listen()
	require.Nil(t, err)
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve()
	}()
	return srv, address, func() {
		assert.Nil(t, srv.Shutdown())
		assert.Nil(t, <-errc)
	}
}

func newAttachedClient(t *testing.T, address string) *client.Client {
	c, err := client.New(client.WithAddress(address), client.WithTimeout(5*time.Second))
	require.Nil(t, err)
	return c
}

func assertReply(t *testing.T, c *client.Client, request, want string) {
	t.Helper()
	got, err := c.Do(request)
	if assert.Nil(t, err) {
		assert.Equal(t, want, got, "request %.40q", request)
	}
}

func dialRaw(t *testing.T, address string) (net.Conn, *bufio.Reader) {
	conn, err := net.Dial("tcp", address)
	require.Nil(t, err)
	require.Nil(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return conn, bufio.NewReader(conn)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.Nil(t, err)
	return line
}
