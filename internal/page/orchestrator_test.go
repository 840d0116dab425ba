package page_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/jetsetgo/till-bridge/internal/drawer"
	"github.com/jetsetgo/till-bridge/internal/notify"
	"github.com/jetsetgo/till-bridge/internal/page"
	"github.com/jetsetgo/till-bridge/internal/page/memdom"
	"github.com/jetsetgo/till-bridge/internal/printer"
	"github.com/jetsetgo/till-bridge/internal/tray"
	"github.com/jetsetgo/till-bridge/internal/tray/traytest"
)

const checkoutHTML = `<html><body>
<form action="/pos/checkout" method="post">
  <select name="register_id"><option value="1">Front</option><option value="3" selected>Bar</option></select>
  <input type="hidden" name="writeoff" value="%s">
  <button type="submit" name="complete_sale" class="btn btn-primary">Complete Sale</button>
</form>
</body></html>`

const refundHTML = `<html><body>
<form action="/pos/refund" method="post">
  <input type="hidden" name="register_id" value="4">
  <button type="submit" name="confirm_refund" class="btn">Confirm Refund</button>
</form>
</body></html>`

func checkoutPage(writeoff string) *memdom.Document {
	return memdom.MustParse("https://pos.example.com/pos/checkout", fmt.Sprintf(checkoutHTML, writeoff))
}

// fakeDrawer implements page.Drawer for testing
type fakeDrawer struct {
	err   error
	block chan struct{}
	panic bool

	calls atomic.Int32
	mu    sync.Mutex
	reqs  []drawer.Request
}

func (f *fakeDrawer) OpenDrawer(ctx context.Context, req drawer.Request) (drawer.Receipt, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.panic {
		panic("drawer exploded")
	}
	return drawer.Receipt{RegisterID: "3"}, f.err
}

func (f *fakeDrawer) requests() []drawer.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]drawer.Request(nil), f.reqs...)
}

// fakeAvailability implements page.Availability for testing
type fakeAvailability struct {
	state  drawer.State
	checks atomic.Int32
}

func (f *fakeAvailability) State() drawer.State { return f.state }

func (f *fakeAvailability) Check(ctx context.Context) bool {
	f.checks.Add(1)
	return f.state != drawer.StateUnavailable
}

func (f *fakeAvailability) Reset() { f.state = drawer.StateUnknown }

// panickyClickDoc hands out workflow buttons whose own action panics
type panickyClickDoc struct {
	*memdom.Document
}

func (d panickyClickDoc) Find(selector string) ([]page.Element, error) {
	els, err := d.Document.Find(selector)
	for i, el := range els {
		els[i] = panickyClick{el}
	}
	return els, err
}

type panickyClick struct {
	page.Element
}

func (panickyClick) Click() error { panic("submit handler exploded") }

// recordingNotifier implements page.Notifier for testing
type recordingNotifier struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (r *recordingNotifier) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recordingNotifier) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func (r *recordingNotifier) Warning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

func (r *recordingNotifier) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

var _ = Describe("Orchestrator", func() {
	var (
		doc      *memdom.Document
		fd       *fakeDrawer
		avail    *fakeAvailability
		notifier *recordingNotifier
		lock     *drawer.TransactionLock
		opts     page.Options
		orch     *page.Orchestrator
	)

	newOrchestrator := func() *page.Orchestrator {
		engine, err := page.NewEngine(page.DefaultRules()...)
		Expect(err).NotTo(HaveOccurred())
		return page.NewOrchestrator(engine, doc, lock, avail, fd, notifier, opts, zap.NewNop())
	}

	originalButton := func() page.Element {
		els, err := doc.Find("button[name=complete_sale]")
		Expect(err).NotTo(HaveOccurred())
		Expect(els).To(HaveLen(1))
		return els[0]
	}

	BeforeEach(func() {
		doc = checkoutPage("0")
		fd = &fakeDrawer{}
		avail = &fakeAvailability{state: drawer.StateAvailable}
		notifier = &recordingNotifier{}
		lock = drawer.NewTransactionLock()
		opts = page.Options{
			AutoSubmit:              true,
			VisibleRegisterSelector: "select[name=register_id]",
			HiddenRegisterSelector:  "input[type=hidden][name=register_id]",
			WriteoffSelector:        "input[name=writeoff]",
		}
	})

	JustBeforeEach(func() {
		orch = newOrchestrator()
	})

	Describe("Start", func() {
		It("binds the checkout button when the daemon is reachable", func() {
			n, err := orch.Start(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			original := originalButton()
			Expect(original.Visible()).To(BeFalse())
			Expect(original.Attr("data-tillbridge-bound")).NotTo(BeEmpty())

			b := orch.Bindings()[0]
			Expect(b.Replacement.Text()).To(Equal("Open Drawer & Complete Sale"))
			Expect(b.Replacement.Attr("class")).To(Equal("btn btn-primary"))
			Expect(b.Replacement.Visible()).To(BeTrue())
			Expect(b.Status.Visible()).To(BeFalse())
			Expect(b.State()).To(Equal(page.Bound))
			Expect((&page.Binding{}).State()).To(Equal(page.Unbound))
		})

		It("leaves the page alone when the daemon is unavailable", func() {
			avail.state = drawer.StateUnavailable

			n, err := orch.Start(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
			Expect(originalButton().Visible()).To(BeTrue())
			Expect(doc.Count("button")).To(Equal(1))
		})

		It("does not probe on unsupported pages", func() {
			doc.Navigate("https://pos.example.com/reports/daily")

			n, err := orch.Start(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
			Expect(avail.checks.Load()).To(BeZero())
		})
	})

	Describe("clicking the drawer button", func() {
		JustBeforeEach(func() {
			_, err := orch.Start(context.Background())
			Expect(err).NotTo(HaveOccurred())
		})

		It("opens the drawer then submits the original", func() {
			b := orch.Bindings()[0]
			Expect(b.Replacement.Click()).To(Succeed())
			orch.Wait()

			Expect(fd.calls.Load()).To(BeEquivalentTo(1))
			req := fd.requests()[0]
			Expect(req.Register.Visible).To(Equal("3"))
			Expect(req.PageURL).To(Equal("https://pos.example.com/pos/checkout"))

			original := originalButton()
			Expect(original.Visible()).To(BeTrue())
			Expect(original.Enabled()).To(BeTrue())
			Expect(b.Replacement.Visible()).To(BeFalse())
			Expect(b.Status.Visible()).To(BeFalse())
			Expect(b.State()).To(Equal(page.Resumed))
			Expect(doc.Submissions()).To(Equal([]string{"Complete Sale"}))
			Expect(lock.IsLocked()).To(BeFalse())
		})

		Context("when the drawer fails", func() {
			BeforeEach(func() {
				fd.err = &drawer.Error{Kind: drawer.KindPrint, Op: "print", Err: errors.New("paper jam")}
			})

			It("still hands control back to the original", func() {
				Expect(orch.Bindings()[0].Replacement.Click()).To(Succeed())
				orch.Wait()

				Expect(originalButton().Visible()).To(BeTrue())
				Expect(doc.Submissions()).To(Equal([]string{"Complete Sale"}))
			})
		})

		Context("when the drawer panics", func() {
			BeforeEach(func() {
				fd.panic = true
			})

			It("still hands control back to the original", func() {
				Expect(orch.Bindings()[0].Replacement.Click()).To(Succeed())
				orch.Wait()

				Expect(originalButton().Visible()).To(BeTrue())
				Expect(doc.Submissions()).To(HaveLen(1))
				Expect(lock.IsLocked()).To(BeFalse())
			})
		})

		Context("when the daemon became unavailable after binding", func() {
			It("skips the drawer and warns", func() {
				avail.state = drawer.StateUnavailable

				Expect(orch.Bindings()[0].Replacement.Click()).To(Succeed())
				orch.Wait()

				Expect(fd.calls.Load()).To(BeZero())
				Expect(notifier.Warnings()).To(ContainElement(ContainSubstring("unavailable")))
				Expect(originalButton().Visible()).To(BeTrue())
				Expect(doc.Submissions()).To(HaveLen(1))
			})
		})

		Context("when auto-submit is off", func() {
			BeforeEach(func() {
				opts.AutoSubmit = false
			})

			It("reveals the original without clicking it", func() {
				Expect(orch.Bindings()[0].Replacement.Click()).To(Succeed())
				orch.Wait()

				Expect(originalButton().Visible()).To(BeTrue())
				Expect(doc.Submissions()).To(BeEmpty())
			})
		})

		Context("with a resume delay", func() {
			BeforeEach(func() {
				opts.ResumeDelay = 30 * time.Millisecond
			})

			It("shows the status message while operating", func() {
				b := orch.Bindings()[0]
				Expect(b.Replacement.Click()).To(Succeed())

				Eventually(b.Status.Visible).Should(BeTrue())
				Expect(b.Replacement.Enabled()).To(BeFalse())

				orch.Wait()
				Expect(b.Status.Visible()).To(BeFalse())
				Expect(b.Replacement.Enabled()).To(BeTrue())
			})
		})

		Context("while an operation is running", func() {
			BeforeEach(func() {
				fd.block = make(chan struct{})
			})

			It("ignores a second click", func() {
				b := orch.Bindings()[0]
				Expect(b.Replacement.Click()).To(Succeed())
				Eventually(fd.calls.Load).Should(BeEquivalentTo(1))
				Expect(b.State()).To(Equal(page.Operating))

				Expect(b.Replacement.Click()).To(Succeed())

				close(fd.block)
				orch.Wait()

				Expect(fd.calls.Load()).To(BeEquivalentTo(1))
				Expect(doc.Submissions()).To(HaveLen(1))
			})
		})
	})

	Describe("a panic while handing control back", func() {
		It("releases the lock and leaves the original usable", func() {
			engine, err := page.NewEngine(page.DefaultRules()...)
			Expect(err).NotTo(HaveOccurred())
			o := page.NewOrchestrator(engine, panickyClickDoc{doc}, lock, avail, fd, notifier, opts, zap.NewNop())

			n, err := o.Start(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			Expect(o.Bindings()[0].Replacement.Click()).To(Succeed())
			o.Wait()

			Expect(lock.IsLocked()).To(BeFalse())
			Expect(originalButton().Visible()).To(BeTrue())
			Expect(originalButton().Enabled()).To(BeTrue())
			Expect(fd.calls.Load()).To(BeEquivalentTo(1))
			Expect(notifier.Errors()).To(HaveLen(1))
		})
	})

	Describe("Reset", func() {
		It("restores the page and is idempotent", func() {
			_, err := orch.Start(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Count("button")).To(Equal(2))

			Expect(orch.Reset()).To(Equal(1))
			Expect(orch.Reset()).To(BeZero())

			original := originalButton()
			Expect(original.Visible()).To(BeTrue())
			Expect(original.Text()).To(Equal("Complete Sale"))
			Expect(original.Attr("data-tillbridge-bound")).To(BeEmpty())
			Expect(doc.Count("button")).To(Equal(1))
			Expect(doc.Count(".tillbridge-status")).To(BeZero())
			Expect(orch.Bindings()).To(BeEmpty())
		})

		It("lets Initialize rebind without duplicates", func() {
			_, err := orch.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())
			n, err := orch.Initialize(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(n).To(Equal(1))
			Expect(doc.Count("button")).To(Equal(2))
			Expect(doc.Count(".tillbridge-status")).To(Equal(1))
		})
	})

	Describe("skip flags", func() {
		Context("on a write-off checkout", func() {
			BeforeEach(func() {
				doc = checkoutPage("1")
			})

			It("binds nothing", func() {
				n, err := orch.Initialize(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(BeZero())
				Expect(originalButton().Visible()).To(BeTrue())
			})
		})

		Context("on a refund for another register", func() {
			BeforeEach(func() {
				doc = memdom.MustParse("https://pos.example.com/pos/refund/99", refundHTML)
				opts.SessionRegisterID = "2"
			})

			It("binds nothing", func() {
				n, err := orch.Initialize(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(BeZero())
			})
		})

		Context("on a refund for the session register", func() {
			BeforeEach(func() {
				doc = memdom.MustParse("https://pos.example.com/pos/refund/99", refundHTML)
				opts.SessionRegisterID = "4"
			})

			It("binds the refund button", func() {
				n, err := orch.Initialize(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(1))
			})
		})
	})
})

var _ = Describe("Orchestrator with a tray daemon", func() {
	var (
		srv      *traytest.Server
		doc      *memdom.Document
		probe    *drawer.Probe
		notifier *notify.Notifier
		history  *notify.History
		orch     *page.Orchestrator
	)

	BeforeEach(func() {
		srv = traytest.NewServer()
		srv.SetPrinters("Epson TM-T88V", "Citizen CT-S2000")
		doc = checkoutPage("0")

		logger := zap.NewNop()
		probe = drawer.NewProbe(tray.NewClient(srv.URL(), time.Second, time.Second, logger), time.Second, logger)
		history = notify.NewHistory(10)
		notifier = notify.NewNotifier(nil, history, logger)
		notifier.AddSurface(page.NewSurface(doc, logger))

		ctrl := drawer.NewController(
			tray.NewClient(srv.URL(), time.Second, time.Second, logger),
			nil,
			probe,
			printer.NewCodeRegistry(),
			printer.NewRegisterMap(map[string]string{"3": "Citizen CT-S2000"}),
			notifier,
			nil,
			nil,
			drawer.Options{Connect: tray.ConnectOptions{Retries: 1, Delay: time.Millisecond}},
			logger,
		)

		engine, err := page.NewEngine(page.DefaultRules()...)
		Expect(err).NotTo(HaveOccurred())
		orch = page.NewOrchestrator(engine, doc, drawer.NewTransactionLock(), probe, ctrl, notifier, page.Options{
			AutoSubmit:              true,
			VisibleRegisterSelector: "select[name=register_id]",
		}, logger)
	})

	AfterEach(func() {
		srv.Close()
	})

	It("kicks the register's printer with its own code", func() {
		n, err := orch.Start(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		Expect(orch.Bindings()[0].Replacement.Click()).To(Succeed())
		orch.Wait()

		jobs := srv.Jobs()
		Expect(jobs).To(HaveLen(1))
		Expect(jobs[0].Printer).To(Equal("Citizen CT-S2000"))
		Expect(jobs[0].Data).To(Equal([]byte{27, 112, 0, 50, 250}))

		Expect(doc.Submissions()).To(Equal([]string{"Complete Sale"}))
		Expect(doc.Notices()).To(ContainElement(memdom.Notice{Level: "success", Message: "Cash drawer opened"}))
	})

	It("binds again on the next page after a failure on the previous one", func() {
		probe.MarkUnavailable()
		n, err := orch.Start(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())

		doc.Navigate("https://pos.example.com/pos/checkout?sale=2")
		n, err = orch.Reload(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
		Expect(probe.State()).To(Equal(drawer.StateAvailable))
		Expect(srv.Connections()).To(Equal(1))
	})

	It("continues the sale when the print is refused", func() {
		srv.Fail(tray.CallPrint, tray.CodeInvalidSignature, "bad signature")

		_, err := orch.Start(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(orch.Bindings()[0].Replacement.Click()).To(Succeed())
		orch.Wait()

		Expect(srv.Jobs()).To(BeEmpty())
		Expect(doc.Submissions()).To(HaveLen(1))
		Expect(probe.State()).To(Equal(drawer.StateAvailable))
		Expect(history.Entries([]string{"warning"})).NotTo(BeEmpty())
	})
})
