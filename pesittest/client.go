package pesittest

import (
	"fmt"
	"net"
	"time"
)

// replyTimeout bounds every harness read. A conforming server answers
// each FPDU well within this, and the failure tests rely on the
// deadline to prove the connection stayed silent after an ABORT.
const replyTimeout = 2 * time.Second

// PesitClient is a raw-bytes PeSIT peer for black-box server tests.
// It speaks FPDUs assembled by hand (fpdu.go), so the server's codec
// and state machine are exercised without sharing any engine code.
type PesitClient struct {
	conn net.Conn
}

func NewPesitClient(address string) (*PesitClient, error) {
	conn, err := net.DialTimeout("tcp", address, replyTimeout)
	if err != nil {
		return nil, err
	}
	return &PesitClient{conn: conn}, nil
}

func (c *PesitClient) Send(data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

// ReadFPDU reads the next complete FPDU with the reply deadline
// armed.
func (c *PesitClient) ReadFPDU() (*FPDU, error) {
	c.conn.SetReadDeadline(time.Now().Add(replyTimeout))
	return ReadNextFPDU(c.conn)
}

// Connect runs the CONNECT/ACONNECT session opening.
func (c *PesitClient) Connect(demander, server, password string, version int) (*FPDU, error) {
	if err := c.Send(BuildConnect(demander, server, password, version)); err != nil {
		return nil, err
	}
	f, err := c.ReadFPDU()
	if err != nil {
		return nil, err
	}
	if f.Phase != PhaseSession || f.Type != TypeAconnect {
		return nil, fmt.Errorf("expected ACONNECT, got phase %#x type %#x", f.Phase, f.Type)
	}
	return f, nil
}

// Release runs the RELEASE/RELCONF session teardown.
func (c *PesitClient) Release() error {
	if err := c.Send(BuildRelease()); err != nil {
		return err
	}
	f, err := c.ReadFPDU()
	if err != nil {
		return err
	}
	if f.Type != TypeRelconf {
		return fmt.Errorf("expected RELCONF, got type %#x", f.Type)
	}
	return nil
}

// ExpectAbort reads the next FPDU, requires it to be an ABORT, and
// returns its PI_02 diagnostic digits. It then verifies that no
// further byte arrives: the next read must fail, either because the
// server closed the connection or because replyTimeout expired.
func (c *PesitClient) ExpectAbort() (string, error) {
	f, err := c.ReadFPDU()
	if err != nil {
		return "", fmt.Errorf("reading ABORT: %w", err)
	}
	if f.Type != TypeAbort {
		return "", fmt.Errorf("expected ABORT, got type %#x", f.Type)
	}
	diag, err := ParseDiagnostic(f.Body)
	if err != nil {
		return "", fmt.Errorf("ABORT carried no diagnostic: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(replyTimeout))
	one := make([]byte, 1)
	if _, err := c.conn.Read(one); err == nil {
		return diag, fmt.Errorf("server kept the connection open after ABORT")
	}
	return diag, nil
}

func (c *PesitClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
