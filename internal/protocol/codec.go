package protocol

import "encoding/binary"

// Sizes of the packed, little-endian wire records. Go struct layout
// would otherwise pad these for alignment, so every record is encoded
// and decoded field-by-field rather than read as a raw memory view.
const (
	SizeMEClientRequest  = 1 + 4 + 4 + 8 + 1 + 8 + 4 // 30 bytes
	SizeOMClientRequest  = 8 + SizeMEClientRequest    // 38 bytes
	SizeMEClientResponse = 1 + 4 + 4 + 8 + 8 + 1 + 8 + 4 + 4 // 42 bytes
	SizeOMClientResponse = 8 + SizeMEClientResponse          // 50 bytes
	SizeMEMarketUpdate   = 1 + 8 + 4 + 1 + 8 + 4 + 8 // 34 bytes
	SizeMDPMarketUpdate  = 8 + SizeMEMarketUpdate     // 42 bytes
)

func putSide(b []byte, s Side) { b[0] = byte(int8(s)) }
func getSide(b []byte) Side    { return Side(int8(b[0])) }

// Marshal encodes r into buf[:SizeMEClientRequest]. buf must have at
// least that much room.
func (r MEClientRequest) Marshal(buf []byte) {
	_ = buf[SizeMEClientRequest-1]
	buf[0] = byte(r.Type)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(r.ClientID))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(r.TickerID))
	binary.LittleEndian.PutUint64(buf[9:17], uint64(r.OrderID))
	putSide(buf[17:18], r.Side)
	binary.LittleEndian.PutUint64(buf[18:26], uint64(r.Price))
	binary.LittleEndian.PutUint32(buf[26:30], uint32(r.Qty))
}

// UnmarshalMEClientRequest decodes a MEClientRequest from buf.
func UnmarshalMEClientRequest(buf []byte) MEClientRequest {
	_ = buf[SizeMEClientRequest-1]
	return MEClientRequest{
		Type:     RequestType(buf[0]),
		ClientID: ClientID(binary.LittleEndian.Uint32(buf[1:5])),
		TickerID: TickerID(binary.LittleEndian.Uint32(buf[5:9])),
		OrderID:  ClientOrderID(binary.LittleEndian.Uint64(buf[9:17])),
		Side:     getSide(buf[17:18]),
		Price:    Price(binary.LittleEndian.Uint64(buf[18:26])),
		Qty:      Qty(binary.LittleEndian.Uint32(buf[26:30])),
	}
}

// Marshal encodes r (with its guarding sequence number) into
// buf[:SizeOMClientRequest].
func (r OMClientRequest) Marshal(buf []byte) {
	_ = buf[SizeOMClientRequest-1]
	binary.LittleEndian.PutUint64(buf[0:8], r.SeqNum)
	r.Request.Marshal(buf[8:])
}

// UnmarshalOMClientRequest decodes an OMClientRequest from buf.
func UnmarshalOMClientRequest(buf []byte) OMClientRequest {
	_ = buf[SizeOMClientRequest-1]
	return OMClientRequest{
		SeqNum:  binary.LittleEndian.Uint64(buf[0:8]),
		Request: UnmarshalMEClientRequest(buf[8:]),
	}
}

// Marshal encodes r into buf[:SizeMEClientResponse].
func (r MEClientResponse) Marshal(buf []byte) {
	_ = buf[SizeMEClientResponse-1]
	buf[0] = byte(r.Type)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(r.ClientID))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(r.TickerID))
	binary.LittleEndian.PutUint64(buf[9:17], uint64(r.ClientOrderID))
	binary.LittleEndian.PutUint64(buf[17:25], uint64(r.MarketOrderID))
	putSide(buf[25:26], r.Side)
	binary.LittleEndian.PutUint64(buf[26:34], uint64(r.Price))
	binary.LittleEndian.PutUint32(buf[34:38], uint32(r.ExecQty))
	binary.LittleEndian.PutUint32(buf[38:42], uint32(r.LeavesQty))
}

// UnmarshalMEClientResponse decodes a MEClientResponse from buf.
func UnmarshalMEClientResponse(buf []byte) MEClientResponse {
	_ = buf[SizeMEClientResponse-1]
	return MEClientResponse{
		Type:          ResponseType(buf[0]),
		ClientID:      ClientID(binary.LittleEndian.Uint32(buf[1:5])),
		TickerID:      TickerID(binary.LittleEndian.Uint32(buf[5:9])),
		ClientOrderID: ClientOrderID(binary.LittleEndian.Uint64(buf[9:17])),
		MarketOrderID: MarketOrderID(binary.LittleEndian.Uint64(buf[17:25])),
		Side:          getSide(buf[25:26]),
		Price:         Price(binary.LittleEndian.Uint64(buf[26:34])),
		ExecQty:       Qty(binary.LittleEndian.Uint32(buf[34:38])),
		LeavesQty:     Qty(binary.LittleEndian.Uint32(buf[38:42])),
	}
}

// Marshal encodes r (with its outgoing sequence number) into
// buf[:SizeOMClientResponse].
func (r OMClientResponse) Marshal(buf []byte) {
	_ = buf[SizeOMClientResponse-1]
	binary.LittleEndian.PutUint64(buf[0:8], r.OutgoingSeqNum)
	r.Response.Marshal(buf[8:])
}

// UnmarshalOMClientResponse decodes an OMClientResponse from buf.
func UnmarshalOMClientResponse(buf []byte) OMClientResponse {
	_ = buf[SizeOMClientResponse-1]
	return OMClientResponse{
		OutgoingSeqNum: binary.LittleEndian.Uint64(buf[0:8]),
		Response:       UnmarshalMEClientResponse(buf[8:]),
	}
}

// Marshal encodes u into buf[:SizeMEMarketUpdate].
func (u MEMarketUpdate) Marshal(buf []byte) {
	_ = buf[SizeMEMarketUpdate-1]
	buf[0] = byte(u.Type)
	binary.LittleEndian.PutUint64(buf[1:9], uint64(u.OrderID))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(u.TickerID))
	putSide(buf[13:14], u.Side)
	binary.LittleEndian.PutUint64(buf[14:22], uint64(u.Price))
	binary.LittleEndian.PutUint32(buf[22:26], uint32(u.Qty))
	binary.LittleEndian.PutUint64(buf[26:34], uint64(u.Priority))
}

// UnmarshalMEMarketUpdate decodes a MEMarketUpdate from buf.
func UnmarshalMEMarketUpdate(buf []byte) MEMarketUpdate {
	_ = buf[SizeMEMarketUpdate-1]
	return MEMarketUpdate{
		Type:     UpdateType(buf[0]),
		OrderID:  MarketOrderID(binary.LittleEndian.Uint64(buf[1:9])),
		TickerID: TickerID(binary.LittleEndian.Uint32(buf[9:13])),
		Side:     getSide(buf[13:14]),
		Price:    Price(binary.LittleEndian.Uint64(buf[14:22])),
		Qty:      Qty(binary.LittleEndian.Uint32(buf[22:26])),
		Priority: Priority(binary.LittleEndian.Uint64(buf[26:34])),
	}
}

// Marshal encodes u (with its channel sequence number) into
// buf[:SizeMDPMarketUpdate].
func (u MDPMarketUpdate) Marshal(buf []byte) {
	_ = buf[SizeMDPMarketUpdate-1]
	binary.LittleEndian.PutUint64(buf[0:8], u.SeqNumber)
	u.Update.Marshal(buf[8:])
}

// UnmarshalMDPMarketUpdate decodes an MDPMarketUpdate from buf.
func UnmarshalMDPMarketUpdate(buf []byte) MDPMarketUpdate {
	_ = buf[SizeMDPMarketUpdate-1]
	return MDPMarketUpdate{
		SeqNumber: binary.LittleEndian.Uint64(buf[0:8]),
		Update:    UnmarshalMEMarketUpdate(buf[8:]),
	}
}
