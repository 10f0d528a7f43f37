package drv2605

import (
	"errors"
	"sync"
	"testing"
	"time"

	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*fakeI2C)(nil)

// Register-file DRV2605L fake. Writes auto-increment from the first byte.
type fakeI2C struct {
	mu   sync.Mutex
	regs [256]byte
	fail error
	txs  int
}

func newFakeDRV2605L() *fakeI2C {
	f := &fakeI2C{}
	f.regs[regStatus] = IDDRV2605L << 5
	f.regs[regMode] = modeStandby
	f.regs[regLRAPeriod] = 40
	return f
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs++
	if f.fail != nil {
		return f.fail
	}
	if addr != Address || len(w) == 0 {
		return errors.New("nack")
	}
	reg := w[0]
	for i, b := range w[1:] {
		f.regs[int(reg)+i] = b
	}
	for i := range r {
		r[i] = f.regs[int(reg)+i]
	}
	return nil
}

func TestConfigureSelectsLRA(t *testing.T) {
	f := newFakeDRV2605L()
	d := New(f)
	if err := d.Configure(Config{}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if f.regs[regMode] != byte(ModeInternalTrigger) {
		t.Fatalf("mode = %#x, standby not cleared", f.regs[regMode])
	}
	if f.regs[regFeedback]&feedbackLRA == 0 {
		t.Fatal("LRA bit not set")
	}
	if f.regs[regControl3]&control3RTPUnsign == 0 {
		t.Fatal("unsigned RTP not selected")
	}
	if f.regs[regLibrary] != libraryLRA {
		t.Fatalf("library = %d", f.regs[regLibrary])
	}
}

func TestConfigureRejectsUnknownDevice(t *testing.T) {
	f := newFakeDRV2605L()
	f.regs[regStatus] = IDDRV2604 << 5
	d := New(f)
	if err := d.Configure(Config{}); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("err = %v", err)
	}
}

func TestSequenceAndGo(t *testing.T) {
	f := newFakeDRV2605L()
	d := New(f)
	w, err := Wait(50 * time.Millisecond)
	if err != nil || w != 0x85 {
		t.Fatalf("Wait = %#x, %v", w, err)
	}
	if err := d.SetSequence([]uint8{StrongClick100, w, SharpTick1}); err != nil {
		t.Fatalf("SetSequence: %v", err)
	}
	want := []byte{StrongClick100, 0x85, SharpTick1, 0}
	for i, b := range want {
		if f.regs[regWaveSeq1+i] != b {
			t.Fatalf("slot %d = %#x want %#x", i, f.regs[regWaveSeq1+i], b)
		}
	}
	if err := d.Go(); err != nil {
		t.Fatalf("Go: %v", err)
	}
	if busy, _ := d.Busy(); !busy {
		t.Fatal("GO bit not set")
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if busy, _ := d.Busy(); busy {
		t.Fatal("GO bit still set")
	}

	if err := d.SetSequence(make([]uint8, 9)); !errors.Is(err, ErrSequenceFull) {
		t.Fatalf("9 slots: %v", err)
	}
	if _, err := Wait(2 * time.Second); !errors.Is(err, ErrWaitRange) {
		t.Fatalf("long wait: %v", err)
	}
}

func TestResonancePeriod(t *testing.T) {
	d := New(newFakeDRV2605L())
	p, err := d.ResonancePeriod()
	if err != nil {
		t.Fatalf("ResonancePeriod: %v", err)
	}
	if p != 40*lraPeriodUnit {
		t.Fatalf("period = %v", p)
	}
}

func TestBusErrorsPropagate(t *testing.T) {
	f := newFakeDRV2605L()
	f.fail = errors.New("arbitration lost")
	d := New(f)
	if err := d.Play(StrongClick100); err == nil {
		t.Fatal("expected bus error")
	}
}
