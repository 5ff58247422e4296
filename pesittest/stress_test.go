package pesittest

import (
	"sync"
	"testing"
)

func TestStressSequentialSessions(t *testing.T) {
	addr := startServer(t)

	for i := range 20 {
		client, err := NewPesitClient(addr)
		if err != nil {
			t.Fatalf("Connect failed at %d: %v", i, err)
		}
		if _, err := client.Connect("CLIENT1", "SRV1", "s3cret", 2); err != nil {
			t.Fatalf("Session opening failed at %d: %v", i, err)
		}
		if err := client.Release(); err != nil {
			t.Fatalf("Session teardown failed at %d: %v", i, err)
		}
		client.Close()
	}
}

func TestStressConcurrentSessions(t *testing.T) {
	addr := startServer(t)

	var clients []*PesitClient
	defer func() {
		for _, client := range clients {
			client.Close()
		}
	}()

	// Create 50 clients
	for i := range 50 {
		client, err := NewPesitClient(addr)
		if err != nil {
			t.Fatalf("Connect failed at %d: %v", i, err)
		}
		clients = append(clients, client)
	}

	var wg sync.WaitGroup
	startSignal := make(chan struct{})
	errCh := make(chan error, len(clients))

	for _, client := range clients {
		wg.Add(1)
		go func(c *PesitClient) {
			defer wg.Done()
			<-startSignal

			if _, err := c.Connect("CLIENT1", "SRV1", "s3cret", 2); err != nil {
				errCh <- err
				return
			}
			if err := c.Release(); err != nil {
				errCh <- err
			}
		}(client)
	}

	close(startSignal)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("session failed: %v", err)
	}
}
