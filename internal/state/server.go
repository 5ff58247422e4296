package state

import "github.com/pesit-e/pesitengine/internal/wire"

// Server states mirror the demander's but use "B" suffixed names,
// plus two receive-side substates not present on the demander side:
// TDE03B/TDE04B for resync, TDE05B/TDE06B for interrupt.
const (
	CN01B State = "CN01B"
	CN02B State = "CN02B" // received CONNECT, about to ACONNECT
	CN03B State = "CN03B"
	CN04B State = "CN04B" // received RELEASE, about to RELCONF

	SF01B State = "SF01B" // received CREATE, about to ACK_CREATE
	SF02B State = "SF02B" // received SELECT, about to ACK_SELECT
	SF03B State = "SF03B"
	SF04B State = "SF04B" // received DESELECT, about to ACK_DESELECT

	OF01B State = "OF01B" // received OPEN, about to ACK_OPEN
	OF02B State = "OF02B"
	OF03B State = "OF03B" // received CLOSE, about to ACK_CLOSE

	// Receive (demander WRITE -> server receives) subtree.
	TDE01B State = "TDE01B" // received WRITE, about to ACK_WRITE
	TDE02B State = "TDE02B" // receiving data
	TDE03B State = "TDE03B" // received SYN, about to ACK_SYN
	TDE04B State = "TDE04B" // received RESYN, about to ACK_RESYN
	TDE05B State = "TDE05B" // received IDT (interrupt), pending realignment
	TDE06B State = "TDE06B" // sent SYN to realign after interrupt, awaiting ACK_SYN
	TDE07B State = "TDE07B" // received DTF_END
	TDE08B State = "TDE08B" // received TRANS_END, about to ACK_TRANS_END

	// Send (demander READ -> server sends) subtree.
	TDL01B State = "TDL01B" // received READ, about to ACK_READ
	TDL02B State = "TDL02B" // sending data
	TDL03B State = "TDL03B" // sent SYN, awaiting ACK_SYN
	TDL04B State = "TDL04B" // sent RESYN, awaiting ACK_RESYN
	TDL07B State = "TDL07B" // sent DTF_END
	TDL08B State = "TDL08B" // sent TRANS_END, awaiting ACK_TRANS_END
)

func serverTable() table {
	t := table{}
	add := func(from State, ev Event, to State) { t[transitionKey{from, ev}] = to }

	add(CN01B, Received(wire.CONNECT), CN02B)
	add(CN02B, Sent(wire.ACONNECT), CN03B)

	add(CN03B, Received(wire.CREATE), SF01B)
	add(CN03B, Received(wire.SELECT), SF02B)
	add(CN03B, Received(wire.RELEASE), CN04B)
	add(CN04B, Sent(wire.RELCONF), CN01B)

	add(SF01B, Sent(wire.ACK_CREATE), SF03B)
	add(SF02B, Sent(wire.ACK_SELECT), SF03B)
	add(SF03B, Received(wire.OPEN), OF01B)
	add(SF03B, Received(wire.DESELECT), SF04B)
	add(SF04B, Sent(wire.ACK_DESELECT), CN03B)

	add(OF01B, Sent(wire.ACK_OPEN), OF02B)
	add(OF02B, Received(wire.WRITE), TDE01B)
	add(OF02B, Received(wire.READ), TDL01B)
	add(OF02B, Received(wire.CLOSE), OF03B)
	add(OF03B, Sent(wire.ACK_CLOSE), SF03B)

	// receive subtree
	add(TDE01B, Sent(wire.ACK_WRITE), TDE02B)
	add(TDE02B, Received(wire.DTF), TDE02B)
	add(TDE02B, Received(wire.DTFDA), TDE02B)
	add(TDE02B, Received(wire.DTFMA), TDE02B)
	add(TDE02B, Received(wire.DTFFA), TDE02B)
	add(TDE02B, Received(wire.SYN), TDE03B)
	add(TDE03B, Sent(wire.ACK_SYN), TDE02B)
	add(TDE02B, Received(wire.RESYN), TDE04B)
	add(TDE04B, Sent(wire.ACK_RESYN), TDE02B)
	add(TDE02B, Received(wire.IDT), TDE05B)
	add(TDE05B, Sent(wire.SYN), TDE06B)
	add(TDE06B, Received(wire.ACK_SYN), TDE02B)
	add(TDE02B, Received(wire.DTF_END), TDE07B)
	add(TDE07B, Received(wire.TRANS_END), TDE08B)
	add(TDE08B, Sent(wire.ACK_TRANS_END), OF02B)

	// send subtree
	add(TDL01B, Sent(wire.ACK_READ), TDL02B)
	add(TDL02B, Sent(wire.DTF), TDL02B)
	add(TDL02B, Sent(wire.DTFDA), TDL02B)
	add(TDL02B, Sent(wire.DTFMA), TDL02B)
	add(TDL02B, Sent(wire.DTFFA), TDL02B)
	add(TDL02B, Sent(wire.SYN), TDL03B)
	add(TDL03B, Received(wire.ACK_SYN), TDL02B)
	add(TDL02B, Sent(wire.RESYN), TDL04B)
	add(TDL04B, Received(wire.ACK_RESYN), TDL02B)
	add(TDL02B, Sent(wire.DTF_END), TDL07B)
	add(TDL07B, Sent(wire.TRANS_END), TDL08B)
	add(TDL08B, Received(wire.ACK_TRANS_END), OF02B)

	return t
}

// NewServer returns a fresh server-role state machine, idle at CN01B.
func NewServer() *Machine {
	return newMachine(Server, CN01B, serverTable())
}
