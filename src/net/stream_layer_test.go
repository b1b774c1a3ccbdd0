package net

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/wire"
)

func TestTCPStreamLayer_WithAdvertise(t *testing.T) {
	layer, err := NewTCPStreamLayer("127.0.0.1:0", "127.0.0.1:12345")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer layer.Close()
	if layer.AdvertiseAddr() != "127.0.0.1:12345" {
		t.Fatalf("bad: %v", layer.AdvertiseAddr())
	}
}

func TestTCPStreamLayer_DialAccept(t *testing.T) {
	layer, err := NewTCPStreamLayer("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer layer.Close()

	go func() {
		conn, err := layer.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello"))
	}()

	conn, err := TCPDialer{}.Dial(layer.AdvertiseAddr(), time.Second)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 5)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("err: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("bad: %q", buf)
	}
}

func TestInmemStreamLayer(t *testing.T) {
	network := NewInmemNetwork()
	a, err := network.NewStreamLayer("10.0.0.1:8444")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	b, err := network.NewStreamLayer("10.0.0.2:8444")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer a.Close()

	if _, err := network.NewStreamLayer("10.0.0.1:8444"); err == nil {
		t.Fatalf("address reuse should fail")
	}

	accepted := make(chan string, 1)
	go func() {
		conn, err := a.Accept()
		if err != nil {
			return
		}
		accepted <- conn.RemoteAddr().String()
		conn.Close()
	}()

	conn, err := b.Dial("10.0.0.1:8444", time.Second)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer conn.Close()

	if conn.RemoteAddr().String() != "10.0.0.1:8444" {
		t.Fatalf("bad remote address: %s", conn.RemoteAddr())
	}
	select {
	case from := <-accepted:
		if from != conn.LocalAddr().String() {
			t.Fatalf("server sees %s, client is %s", from, conn.LocalAddr())
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout")
	}

	b.Close()
	if _, err := a.Dial("10.0.0.2:8444", time.Second); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	if _, err := b.Accept(); err != ErrListenerClosed {
		t.Fatalf("expected ErrListenerClosed, got %v", err)
	}
}

func TestSendCustom(t *testing.T) {
	network := NewInmemNetwork()
	server, _ := network.NewStreamLayer("10.0.0.1:8444")
	client, _ := network.NewStreamLayer("10.0.0.2:8444")
	defer server.Close()
	defer client.Close()

	go func() {
		conn, err := server.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := wire.NewReader()
		buf := make([]byte, 64)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			r.Update(buf[:n])
			for _, m := range r.Messages() {
				req := m.(*wire.Custom)
				resp := &wire.Custom{Name: "pong", Data: bytes.ToUpper(req.Data)}
				wire.WriteMessage(conn, resp)
				return
			}
		}
	}()

	resp, err := SendCustom(client, "10.0.0.1:8444", time.Second, &wire.Custom{Name: "ping", Data: []byte("abc")})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if resp.Name != "pong" || string(resp.Data) != "ABC" {
		t.Fatalf("bad response: %+v", resp)
	}
}
