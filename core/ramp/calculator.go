// Package ramp derives the physically bounded power trajectory across a
// sequence of curtailment instructions and reconciles it against the planned
// and observed generation sources.
package ramp

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/sldctools/backdown/core/logger"
	"github.com/sldctools/backdown/core/model"
	"github.com/sldctools/backdown/core/timeslot"
)

const minutesPerDay = 24 * 60

// ReferenceLookup returns the planned-generation figure for a date and slot.
// ok=false means the source simply has no value there.
type ReferenceLookup interface {
	Value(date, from, to string) (float64, bool)
}

// TelemetryLookup returns the observed generation for a date and time instant.
type TelemetryLookup interface {
	Value(date, at string) (float64, bool)
}

// ProgressFunc receives slot counts while a run is in flight.
type ProgressFunc func(processed, total int)

// Result is the outcome of one run: the ordered ledger plus counters.
type Result struct {
	Rows         []model.OutputRow
	Instructions int
	Slots        int
	RefFound     int
	RefMissing   int
	TelFound     int
	TelMissing   int
}

// Calculator folds the instruction sequence into the output ledger. It is
// single-threaded; one Calculator serves one run.
type Calculator struct {
	tun      model.Tunables
	ref      ReferenceLookup
	tel      TelemetryLookup
	log      logger.Logger
	progress ProgressFunc
	batch    int
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithProgress reports slot progress every batch slots through fn.
func WithProgress(fn ProgressFunc, batch int) Option {
	return func(c *Calculator) {
		c.progress = fn
		if batch > 0 {
			c.batch = batch
		}
	}
}

// New builds a Calculator. Either lookup may be nil when that source is not
// configured; its values are then simply unknown.
func New(tun model.Tunables, ref ReferenceLookup, tel TelemetryLookup, log logger.Logger, opts ...Option) *Calculator {
	if log == nil {
		log = logger.Nop{}
	}
	c := &Calculator{tun: tun, ref: ref, tel: tel, log: log, batch: 5}
	for _, o := range opts {
		o(c)
	}
	return c
}

// state is the only value carried across instructions: where the previous
// block ended, at what ramp value, and on which date.
type state struct {
	endTime string
	endRamp *float64
	endDate string
}

// Run processes the instructions in input order and returns the ledger.
// The context is polled once per slot; cancellation abandons the run.
func (c *Calculator) Run(ctx context.Context, instructions []model.Instruction) (Result, error) {
	res := Result{}
	var st state

	totalSlots := 0
	for _, ins := range instructions {
		totalSlots += len(timeslot.Slots(ins.From, ins.To))
	}

	processed := 0
	// Block start index of the instruction whose summary row is still
	// pending; gap slots belonging to it are interleaved before the summary
	// once the next instruction is known.
	pendingStart := -1

	for _, ins := range instructions {
		slots := timeslot.Slots(ins.From, ins.To)
		if len(slots) == 0 {
			c.log.Debugw("instruction skipped, no slots", map[string]any{
				"station": ins.Station, "date": ins.Date, "row": ins.SourceRow,
			})
			continue
		}
		res.Instructions++

		if pendingStart >= 0 {
			c.flushPending(&res, &st, slots[0].From, ins.Date, pendingStart)
		}

		floor := c.tun.MinimumLoadFloor
		if ins.LoadFloor != nil && *ins.LoadFloor > floor {
			floor = *ins.LoadFloor
		}

		entryStart := len(res.Rows)
		var prevSlotRamp *float64

		for i, slot := range slots {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			refVal, refOK := c.reference(ins.Date, slot.From, slot.To)
			telVal, telOK := c.telemetry(ins.Date, slot.From)
			if refOK {
				res.RefFound++
			} else {
				res.RefMissing++
			}
			if telOK {
				res.TelFound++
			} else {
				res.TelMissing++
			}

			var rampVal *float64
			if i == 0 {
				rampVal = c.firstSlotRamp(st, slot.From, floor, refVal, refOK, telVal, telOK)
			} else if prevSlotRamp != nil {
				v := rampDownStep(*prevSlotRamp, c.tun.RampDown15, floor)
				rampVal = &v
			}
			prevSlotRamp = rampVal

			row := deriveRow(refVal, refOK, telVal, telOK, rampVal)
			if i == 0 {
				row.Date = ins.Date
			}
			row.From = slot.From
			row.To = slot.To
			row.BlockEnd = slot.To == slots[len(slots)-1].To
			res.Rows = append(res.Rows, row)

			processed++
			res.Slots = processed
			if c.progress != nil && (processed%c.batch == 0 || processed == totalSlots) {
				c.progress(processed, totalSlots)
			}
		}

		st = state{endTime: slots[len(slots)-1].To, endRamp: prevSlotRamp, endDate: ins.Date}
		pendingStart = entryStart
	}

	if pendingStart >= 0 {
		c.summarize(&res, pendingStart)
	}
	return res, nil
}

// flushPending emits the previous instruction's gap slots (when it is not
// contiguous with the next one) followed by its summary row.
func (c *Calculator) flushPending(res *Result, st *state, nextFrom, nextDate string, pendingStart int) {
	if st.endTime != "" && st.endDate != "" && timeslot.Normalize(st.endTime) != timeslot.Normalize(nextFrom) {
		c.fillGap(res, st, nextFrom, nextDate)
	}
	c.summarize(res, pendingStart)
}

// fillGap synthesizes ramp-up slots between the previous block's end and the
// next instruction's start. Emission stops as soon as the projected value
// would exceed telemetry; the remaining gap stays unfilled.
func (c *Calculator) fillGap(res *Result, st *state, nextFrom, nextDate string) {
	gapSlots := timeslot.Slots(st.endTime, nextFrom)
	prevEndMins, _ := timeslot.ParseMinutes(st.endTime)
	datesDiffer := st.endDate != nextDate
	gapPrev := st.endRamp
	lastTo := ""
	var lastRamp *float64

	for _, g := range gapSlots {
		gMins, _ := timeslot.ParseMinutes(g.From)
		// A gap slot that wrapped past midnight belongs to the new date.
		date := st.endDate
		if datesDiffer && gMins < prevEndMins {
			date = nextDate
		}

		refVal, refOK := c.reference(date, g.From, g.To)
		telVal, telOK := c.telemetry(date, g.From)

		var rampVal *float64
		if gapPrev != nil {
			wouldBe := *gapPrev + c.tun.RampUp15
			if telOK && wouldBe > telVal {
				c.log.Debugf("gap fill stopped at %s: projected %.2f above telemetry %.2f", g.From, wouldBe, telVal)
				break
			}
			v := wouldBe
			if refOK && v > refVal {
				v = refVal
			}
			rampVal = &v
		}
		gapPrev = rampVal

		row := deriveRow(refVal, refOK, telVal, telOK, rampVal)
		row.From = g.From
		row.To = g.To
		res.Rows = append(res.Rows, row)
		lastTo = g.To
		lastRamp = rampVal
	}

	// The next instruction's continuity check runs against the last slot
	// actually emitted, not the nominal gap end.
	if lastTo != "" {
		st.endTime = lastTo
		st.endRamp = lastRamp
	}
}

// firstSlotRamp applies the continuity rule for the first slot of a block.
func (c *Calculator) firstSlotRamp(st state, from string, floor float64, refVal float64, refOK bool, telVal float64, telOK bool) *float64 {
	continuous := st.endTime != "" && timeslot.Normalize(from) == timeslot.Normalize(st.endTime)
	if continuous && st.endRamp != nil {
		raw := *st.endRamp - c.tun.RampDown15
		if telOK && raw > telVal {
			raw = telVal
		}
		v := math.Max(floor, raw)
		if *st.endRamp <= floor {
			v = floor
		}
		return &v
	}

	// Fresh start: ramp down from the planned figure, the rate picked from
	// the elapsed gap length.
	slotMins, _ := timeslot.ParseMinutes(from)
	gapMins := 15
	if st.endTime == "" {
		gapMins = slotMins - timeslot.Floor15(slotMins)
		if gapMins == 0 {
			gapMins = 15
		}
	} else if prevMins, ok := timeslot.ParseMinutes(st.endTime); ok {
		gapMins = (slotMins - prevMins) % minutesPerDay
		if gapMins <= 0 {
			gapMins += minutesPerDay
		}
	}

	rate := c.tun.RampDown5
	switch {
	case gapMins >= 15:
		rate = c.tun.RampDown15
	case gapMins >= 10:
		rate = c.tun.RampDown10
	}
	if !refOK {
		return nil
	}
	v := refVal - rate
	return &v
}

// rampDownStep advances one 15-minute step within a block, snapping to the
// floor once it has been reached.
func rampDownStep(prev, down15, floor float64) float64 {
	if prev <= floor {
		return floor
	}
	return math.Max(floor, prev-down15)
}

// summarize appends the summary row terminating the block that starts at
// res.Rows[start].
func (c *Calculator) summarize(res *Result, start int) {
	var mus, mu []float64
	for _, row := range res.Rows[start:] {
		if row.EnergyMUs != nil {
			mus = append(mus, *row.EnergyMUs)
		}
		mu = append(mu, row.ComplianceMU)
	}
	sumMUs := round3(floats.Sum(mus))
	sumMU := round3(floats.Sum(mu))
	res.Rows = append(res.Rows, model.OutputRow{
		Summary:         true,
		SumEnergyMUs:    &sumMUs,
		SumComplianceMU: &sumMU,
	})
}

// deriveRow computes the per-slot metrics from whichever operands are known.
// Unknown operands propagate as nil, except ComplianceMU which is always a
// number, zero when undefined or non-positive.
func deriveRow(refVal float64, refOK bool, telVal float64, telOK bool, rampVal *float64) model.OutputRow {
	row := model.OutputRow{}
	if refOK {
		row.Reference = model.Float(refVal)
	}
	if telOK {
		row.Telemetry = model.Float(telVal)
	}
	if refOK && telOK {
		diff := round2(refVal - telVal)
		row.RefTelDiff = &diff
		mus := round10(diff / 4000)
		row.EnergyMUs = &mus
	}
	if rampVal != nil {
		row.Ramp = model.Float(round2(*rampVal))
		if telOK {
			cdiff := round2(telVal - *rampVal)
			row.ComplianceDiff = &cdiff
			if cdiff/4000 > 0 {
				row.ComplianceMU = round10(cdiff / 4000)
			}
		}
	}
	return row
}

func (c *Calculator) reference(date, from, to string) (float64, bool) {
	if c.ref == nil || date == "" {
		return 0, false
	}
	return c.ref.Value(date, from, to)
}

func (c *Calculator) telemetry(date, at string) (float64, bool) {
	if c.tel == nil || date == "" {
		return 0, false
	}
	return c.tel.Value(date, at)
}

func round2(v float64) float64  { return math.Round(v*100) / 100 }
func round3(v float64) float64  { return math.Round(v*1000) / 1000 }
func round10(v float64) float64 { return math.Round(v*1e10) / 1e10 }
