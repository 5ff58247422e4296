package state

import "github.com/pesit-e/pesitengine/internal/wire"

// Demander states. The "A" suffix denotes "awaiting
// peer ACK": the demander has sent something and is blocked for the
// matching reply.
const (
	CN01  State = "CN01"
	CN02A State = "CN02A"
	CN03  State = "CN03"
	CN04A State = "CN04A" // sent RELEASE, awaiting RELCONF

	SF01A State = "SF01A" // sent CREATE, awaiting ACK_CREATE
	SF02A State = "SF02A" // sent SELECT, awaiting ACK_SELECT
	SF03  State = "SF03"
	SF04A State = "SF04A" // sent DESELECT, awaiting ACK_DESELECT

	OF01A State = "OF01A" // sent OPEN, awaiting ACK_OPEN
	OF02  State = "OF02"
	OF03A State = "OF03A" // sent CLOSE, awaiting ACK_CLOSE

	// Write (demander-sends) subtree.
	TDE01A State = "TDE01A" // sent WRITE, awaiting ACK_WRITE
	TDE02A State = "TDE02A" // sending data
	TDE03  State = "TDE03"  // sent SYN, awaiting ACK_SYN
	TDE04A State = "TDE04A" // sent RESYN, awaiting ACK_RESYN
	TDE07  State = "TDE07"  // sent DTF_END
	TDE08A State = "TDE08A" // sent TRANS_END, awaiting ACK_TRANS_END

	// Read (demander-receives) subtree.
	TDL01A State = "TDL01A" // sent READ, awaiting ACK_READ
	TDL02A State = "TDL02A" // receiving data
	TDL03  State = "TDL03"  // received SYN, about to ACK
	TDL04A State = "TDL04A" // received RESYN, about to ACK_RESYN
	TDL07  State = "TDL07"  // received DTF_END
	TDL08A State = "TDL08A" // received TRANS_END, about to ACK
)

func demanderTable() table {
	t := table{}
	add := func(from State, ev Event, to State) { t[transitionKey{from, ev}] = to }

	add(CN01, Sent(wire.CONNECT), CN02A)
	add(CN02A, Received(wire.ACONNECT), CN03)

	add(CN03, Sent(wire.CREATE), SF01A)
	add(CN03, Sent(wire.SELECT), SF02A)
	add(CN03, Sent(wire.RELEASE), CN04A)
	add(CN04A, Received(wire.RELCONF), CN01)

	add(SF01A, Received(wire.ACK_CREATE), SF03)
	add(SF02A, Received(wire.ACK_SELECT), SF03)
	add(SF03, Sent(wire.OPEN), OF01A)
	add(SF03, Sent(wire.DESELECT), SF04A)
	add(SF04A, Received(wire.ACK_DESELECT), CN03)

	add(OF01A, Received(wire.ACK_OPEN), OF02)
	add(OF02, Sent(wire.WRITE), TDE01A)
	add(OF02, Sent(wire.READ), TDL01A)
	add(OF02, Sent(wire.CLOSE), OF03A)
	add(OF03A, Received(wire.ACK_CLOSE), SF03)

	// write subtree
	add(TDE01A, Received(wire.ACK_WRITE), TDE02A)
	add(TDE02A, Sent(wire.DTF), TDE02A)
	add(TDE02A, Sent(wire.DTFDA), TDE02A)
	add(TDE02A, Sent(wire.DTFMA), TDE02A)
	add(TDE02A, Sent(wire.DTFFA), TDE02A)
	add(TDE02A, Sent(wire.SYN), TDE03)
	add(TDE03, Received(wire.ACK_SYN), TDE02A)
	add(TDE02A, Sent(wire.RESYN), TDE04A)
	add(TDE04A, Received(wire.ACK_RESYN), TDE02A)
	add(TDE02A, Sent(wire.DTF_END), TDE07)
	add(TDE07, Sent(wire.TRANS_END), TDE08A)
	add(TDE08A, Received(wire.ACK_TRANS_END), OF02)

	// read subtree
	add(TDL01A, Received(wire.ACK_READ), TDL02A)
	add(TDL02A, Received(wire.DTF), TDL02A)
	add(TDL02A, Received(wire.DTFDA), TDL02A)
	add(TDL02A, Received(wire.DTFMA), TDL02A)
	add(TDL02A, Received(wire.DTFFA), TDL02A)
	add(TDL02A, Received(wire.SYN), TDL03)
	add(TDL03, Sent(wire.ACK_SYN), TDL02A)
	add(TDL02A, Received(wire.RESYN), TDL04A)
	add(TDL04A, Sent(wire.ACK_RESYN), TDL02A)
	add(TDL02A, Received(wire.DTF_END), TDL07)
	add(TDL07, Received(wire.TRANS_END), TDL08A)
	add(TDL08A, Sent(wire.ACK_TRANS_END), OF02)

	return t
}

// NewDemander returns a fresh demander-role state machine, idle at
// CN01.
func NewDemander() *Machine {
	return newMachine(Demander, CN01, demanderTable())
}
