package pesittest

import "testing"

func TestConnectRelease(t *testing.T) {
	addr := startServer(t)

	client, err := NewPesitClient(addr)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if _, err := client.Connect("CLIENT1", "SRV1", "s3cret", 2); err != nil {
		t.Fatalf("Session opening failed: %v", err)
	}
	if err := client.Release(); err != nil {
		t.Fatalf("Session teardown failed: %v", err)
	}
}

func TestBadPasswordAborted(t *testing.T) {
	addr := startServer(t)

	client, err := NewPesitClient(addr)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if err := client.Send(BuildConnect("CLIENT1", "SRV1", "wrong", 2)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	diag, err := client.ExpectAbort()
	if err != nil {
		t.Fatalf("ABORT check failed: %v", err)
	}
	if diag != "300" {
		t.Errorf("Expected diagnostic 300 (authentication failure), got: %s", diag)
	}
}
