package repl

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
)

// installAPI binds the exhaustive capability surface from spec.md §4.2.
// Nothing else is reachable from inside the sandbox: no ambient filesystem,
// network, or host globals (spec.md §3 Invariants).
func (r *REPL) installAPI() {
	vm := r.vm
	global := vm.GlobalObject()

	_ = global.DefineAccessorProperty("tabs", vm.ToValue(func() goja.Value {
		tabs, err := r.opts.Driver.ListTabs(r.dctx())
		if err != nil {
			return vm.ToValue([]any{})
		}
		return vm.ToValue(tabs)
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = global.DefineAccessorProperty("activeTab", vm.ToValue(func() goja.Value {
		id, err := r.opts.Driver.ActiveTabID(r.dctx())
		if err != nil {
			return goja.Undefined()
		}
		return vm.ToValue(id)
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	envObj := vm.NewObject()
	_ = vm.Set("env", envObj)

	_ = vm.Set("openTab", func(url string) (string, error) {
		return r.opts.Driver.OpenTab(r.dctx(), url)
	})
	_ = vm.Set("closeTab", func(id string) error {
		return r.opts.Driver.CloseTab(r.dctx(), id)
	})
	_ = vm.Set("navigate", func(id, url string) error {
		return r.opts.Driver.Navigate(r.dctx(), id, url)
	})
	_ = vm.Set("switchTab", func(id string) error {
		return r.opts.Driver.SwitchTab(r.dctx(), id)
	})
	_ = vm.Set("waitForLoad", func(id string, timeoutMs ...int64) error {
		return r.opts.Driver.WaitForLoad(r.dctx(), id, msOrDefault(timeoutMs, 30_000))
	})
	_ = vm.Set("waitForSelector", func(id, sel string, timeoutMs ...int64) error {
		return r.opts.Driver.WaitForSelector(r.dctx(), id, sel, msOrDefault(timeoutMs, 30_000))
	})

	_ = vm.Set("execInTab", func(id, code string) (any, error) {
		ctx, cancel := context.WithTimeout(r.dctx(), r.opts.ExecInTabTimeout)
		defer cancel()
		v, err := r.opts.Driver.Exec(ctx, id, code)
		if err != nil {
			return nil, err
		}
		return capResult(v)
	})
	_ = vm.Set("getText", func(id string, sel ...string) (string, error) {
		return r.opts.Driver.GetText(r.dctx(), id, firstOr(sel, ""))
	})
	_ = vm.Set("getDOM", func(id string, sel ...string) (string, error) {
		return r.opts.Driver.GetDOM(r.dctx(), id, firstOr(sel, ""))
	})
	_ = vm.Set("getLinks", func(id string) ([]map[string]string, error) {
		html, err := r.opts.Driver.GetDOM(r.dctx(), id, "")
		if err != nil {
			return nil, err
		}
		handle, perr := r.docs.parse(html)
		if perr != nil {
			return nil, perr
		}
		defer r.docs.free(handle)
		doc, _ := r.docs.get(handle)
		var links []map[string]string
		for _, n := range queryAll(doc, "a") {
			links = append(links, map[string]string{"text": n.Text, "href": n.Attrs["href"]})
		}
		return links, nil
	})
	_ = vm.Set("getInputs", func(id string) ([]domNode, error) {
		html, err := r.opts.Driver.GetDOM(r.dctx(), id, "")
		if err != nil {
			return nil, err
		}
		handle, perr := r.docs.parse(html)
		if perr != nil {
			return nil, perr
		}
		defer r.docs.free(handle)
		doc, _ := r.docs.get(handle)
		return queryAll(doc, "input,textarea,select"), nil
	})
	_ = vm.Set("querySelector", func(id, sel string) (*domNode, error) {
		html, err := r.opts.Driver.GetDOM(r.dctx(), id, "")
		if err != nil {
			return nil, err
		}
		handle, perr := r.docs.parse(html)
		if perr != nil {
			return nil, perr
		}
		defer r.docs.free(handle)
		doc, _ := r.docs.get(handle)
		n, ok := queryOne(doc, sel)
		if !ok {
			return nil, nil
		}
		return &n, nil
	})
	_ = vm.Set("querySelectorAll", func(id, sel string) ([]domNode, error) {
		html, err := r.opts.Driver.GetDOM(r.dctx(), id, "")
		if err != nil {
			return nil, err
		}
		handle, perr := r.docs.parse(html)
		if perr != nil {
			return nil, perr
		}
		defer r.docs.free(handle)
		doc, _ := r.docs.get(handle)
		return queryAll(doc, sel), nil
	})
	_ = vm.Set("getSearchResults", func(id string) ([]domNode, error) {
		html, err := r.opts.Driver.GetDOM(r.dctx(), id, "")
		if err != nil {
			return nil, err
		}
		handle, perr := r.docs.parse(html)
		if perr != nil {
			return nil, perr
		}
		defer r.docs.free(handle)
		doc, _ := r.docs.get(handle)
		return queryAll(doc, "#search .g, div[data-sokoban-container], .result"), nil
	})
	_ = vm.Set("getWikiTables", func(id string) ([][]domNode, error) {
		html, err := r.opts.Driver.GetDOM(r.dctx(), id, "")
		if err != nil {
			return nil, err
		}
		handle, perr := r.docs.parse(html)
		if perr != nil {
			return nil, perr
		}
		defer r.docs.free(handle)
		doc, _ := r.docs.get(handle)
		var tables [][]domNode
		doc.Find("table.wikitable").Each(func(_ int, tbl *goquery.Selection) {
			var rows []domNode
			tbl.Find("tr").Each(func(_ int, row *goquery.Selection) {
				rows = append(rows, nodeFromSelection(row, false))
			})
			tables = append(tables, rows)
		})
		return tables, nil
	})

	_ = vm.Set("click", func(id, sel string) error {
		if r.gated("click "+sel) {
			return errConfirmationDenied
		}
		return r.opts.Driver.Click(r.dctx(), id, sel)
	})
	_ = vm.Set("type", func(id, sel, text string) error {
		if r.gated("type into "+sel) {
			return errConfirmationDenied
		}
		return r.opts.Driver.Type(r.dctx(), id, sel, text)
	})
	_ = vm.Set("scroll", func(id string, dir string, amount ...int) error {
		a := 500
		if len(amount) > 0 {
			a = amount[0]
		}
		return r.opts.Driver.Scroll(r.dctx(), id, dir, a)
	})

	_ = vm.Set("parseHTML", func(html string) (string, error) {
		return r.docs.parse(html)
	})
	_ = vm.Set("parsePage", func(id string, sel ...string) (string, error) {
		html, err := r.opts.Driver.GetDOM(r.dctx(), id, firstOr(sel, ""))
		if err != nil {
			return "", err
		}
		return r.docs.parse(html)
	})
	_ = vm.Set("domQueryAll", func(handle, sel string) []domNode {
		doc, ok := r.docs.get(handle)
		if !ok {
			return nil
		}
		return queryAll(doc, sel)
	})
	_ = vm.Set("domQueryOne", func(handle, sel string) *domNode {
		doc, ok := r.docs.get(handle)
		if !ok {
			return nil
		}
		n, ok := queryOne(doc, sel)
		if !ok {
			return nil
		}
		return &n
	})
	_ = vm.Set("domQueryText", func(handle, sel string) string {
		doc, ok := r.docs.get(handle)
		if !ok {
			return ""
		}
		return queryText(doc, sel)
	})
	_ = vm.Set("freeDoc", func(handle string) {
		r.docs.free(handle)
	})

	if !r.opts.SubAgent {
		_ = vm.Set("llm_query", func(prompt string, data ...goja.Value) string {
			var d any
			if len(data) > 0 {
				d = data[0].Export()
			}
			return r.opts.Callbacks.OnSubCall(r.dctx(), prompt, d)
		})
		_ = vm.Set("llm_batch", func(prompts []string) []BatchOutcome {
			return r.opts.Callbacks.OnSubBatch(r.dctx(), prompts)
		})
	} else {
		_ = vm.Set("llm_query", func(string, ...goja.Value) string {
			return "[SUB-CALL ERROR] recursion is disabled inside a sub-agent."
		})
		_ = vm.Set("llm_batch", func([]string) []BatchOutcome {
			return []BatchOutcome{{Status: "rejected", Error: "recursion is disabled inside a sub-agent."}}
		})
	}

	_ = vm.Set("setFinal", func(v goja.Value) {
		r.finalCalled = true
		r.finalValue = v.Export()
		if r.opts.Callbacks != nil {
			r.opts.Callbacks.OnSetFinal(r.finalValue)
		}
	})
	_ = vm.Set("log", func(msg string) {
		if len(msg) > LogMaxChars {
			msg = msg[:LogMaxChars]
		}
		if r.opts.Callbacks != nil {
			r.opts.Callbacks.OnLog(msg)
		}
	})
	_ = vm.Set("sleep", func(ms int64) {
		if ms > SleepCapMs {
			ms = SleepCapMs
		}
		if ms <= 0 {
			return
		}
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-r.dctx().Done():
		}
	})
}

func (r *REPL) dctx() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

func (r *REPL) gated(action string) bool {
	if !r.opts.ConfirmationsEnabled || r.opts.ConfirmGate == nil {
		return false
	}
	return !r.opts.ConfirmGate.RequireConfirmation(r.dctx(), action)
}

func msOrDefault(vals []int64, def int64) time.Duration {
	if len(vals) > 0 && vals[0] > 0 {
		return time.Duration(vals[0]) * time.Millisecond
	}
	return time.Duration(def) * time.Millisecond
}

func firstOr(vals []string, def string) string {
	if len(vals) > 0 {
		return vals[0]
	}
	return def
}

var errConfirmationDenied = errDenied{}

type errDenied struct{}

func (errDenied) Error() string { return "confirmation denied for sensitive action" }
