package domain

// Tick es el estado de un solo lado del libro en un instante, tal como se
// guarda y se importa. Los snapshots se arman agrupando ticks por offset.
type Tick struct {
	MarketID       string
	Side           Side
	TimestampMs    int64
	OffsetMs       int64
	State          SideState
	ReferencePrice float64
	OraclePrice    float64
}

// SplitSnapshot descompone un snapshot en sus dos ticks (YES y NO).
func SplitSnapshot(snap BookSnapshot) [2]Tick {
	tick := func(side Side) Tick {
		return Tick{
			MarketID:       snap.MarketID,
			Side:           side,
			TimestampMs:    snap.TimestampMs,
			OffsetMs:       snap.OffsetMs,
			State:          snap.Side(side),
			ReferencePrice: snap.ReferencePrice,
			OraclePrice:    snap.OraclePrice,
		}
	}
	return [2]Tick{tick(SideYes), tick(SideNo)}
}

// SnapshotsFromTicks agrupa ticks ordenados por offset en snapshots.
// Si en un offset falta un lado, se arrastra el estado anterior de ese lado.
// Los precios de referencia y oráculo son los primeros no nulos del offset.
func SnapshotsFromTicks(marketID string, ticks []Tick) []BookSnapshot {
	if len(ticks) == 0 {
		return nil
	}

	var (
		snaps   []BookSnapshot
		prevYes SideState
		prevNo  SideState
	)
	for i := 0; i < len(ticks); {
		snap := BookSnapshot{
			MarketID:    marketID,
			OffsetMs:    ticks[i].OffsetMs,
			TimestampMs: ticks[i].TimestampMs,
			Yes:         prevYes,
			No:          prevNo,
		}
		for ; i < len(ticks) && ticks[i].OffsetMs == snap.OffsetMs; i++ {
			t := ticks[i]
			if t.Side == SideNo {
				snap.No = t.State
			} else {
				snap.Yes = t.State
			}
			if snap.ReferencePrice == 0 {
				snap.ReferencePrice = t.ReferencePrice
			}
			if snap.OraclePrice == 0 {
				snap.OraclePrice = t.OraclePrice
			}
		}
		prevYes, prevNo = snap.Yes, snap.No
		snaps = append(snaps, snap)
	}
	return snaps
}

// OutcomeFromPrices resuelve una ventana comparando el primer y el último
// precio observado: subida es YES, cualquier otra cosa es NO.
// Devuelve OutcomeUnresolved si falta alguno.
func OutcomeFromPrices(first, last float64) Outcome {
	if first <= 0 || last <= 0 {
		return OutcomeUnresolved
	}
	if last > first {
		return OutcomeYes
	}
	return OutcomeNo
}
