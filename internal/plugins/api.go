package plugins

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xpath"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// inject installs the den host object: HTTP through the shared fetch pool
// (robots checks and retries included), structured logging tagged with the
// plugin id, and DOM utilities. Scripts never get raw network or filesystem
// access outside of this surface.
func (r *Runtime) inject() {
	vm := r.vm
	den := vm.NewObject()

	httpObj := vm.NewObject()
	httpObj.Set("get", func(call goja.FunctionCall) goja.Value {
		body, err := r.pool().Request(r.callCtx(), call.Argument(0).String())
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(string(body))
	})
	httpObj.Set("postForm", func(call goja.FunctionCall) goja.Value {
		target := call.Argument(0).String()
		form := url.Values{}
		if obj := call.Argument(1).ToObject(vm); obj != nil {
			for _, key := range obj.Keys() {
				form.Set(key, obj.Get(key).String())
			}
		}
		body, err := r.pool().PostForm(r.callCtx(), target, form)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(string(body))
	})
	den.Set("http", httpObj)

	logger := log.With().Str("plugin", r.manifest.ProviderID).Logger()
	logObj := vm.NewObject()
	logObj.Set("debug", func(msg string) { logger.Debug().Msg(msg) })
	logObj.Set("info", func(msg string) { logger.Info().Msg(msg) })
	logObj.Set("warn", func(msg string) { logger.Warn().Msg(msg) })
	logObj.Set("error", func(msg string) { logger.Error().Msg(msg) })
	den.Set("log", logObj)

	utils := vm.NewObject()
	utils.Set("parseHTML", func(call goja.FunctionCall) goja.Value {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(call.Argument(0).String()))
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return r.elementToJS(doc.Selection)
	})
	utils.Set("xpath", func(call goja.FunctionCall) goja.Value {
		return r.xpathQuery(call.Argument(0).String(), call.Argument(1).String())
	})
	den.Set("utils", utils)

	config := vm.NewObject()
	for k, v := range r.manifest.Config {
		config.Set(k, vm.ToValue(v))
	}
	den.Set("config", config)

	vm.Set("den", den)
}

// elementToJS wraps a goquery selection as a DOM-ish script object.
func (r *Runtime) elementToJS(sel *goquery.Selection) goja.Value {
	vm := r.vm
	el := vm.NewObject()
	el.Set("textContent", sel.Text())
	inner, _ := sel.Html()
	el.Set("innerHTML", inner)
	el.Set("getAttribute", func(name string) goja.Value {
		if v, ok := sel.Attr(name); ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	})
	el.Set("querySelector", func(selector string) goja.Value {
		found := sel.Find(selector).First()
		if found.Length() == 0 {
			return goja.Null()
		}
		return r.elementToJS(found)
	})
	el.Set("querySelectorAll", func(selector string) goja.Value {
		var out []goja.Value
		sel.Find(selector).Each(func(_ int, child *goquery.Selection) {
			out = append(out, r.elementToJS(child))
		})
		return vm.ToValue(out)
	})
	return el
}

// xpathQuery evaluates an XPath expression against an HTML fragment and
// returns matched nodes as script elements.
func (r *Runtime) xpathQuery(fragment, expression string) goja.Value {
	vm := r.vm
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		panic(vm.ToValue(err.Error()))
	}
	expr, err := xpath.Compile(expression)
	if err != nil {
		panic(vm.ToValue("bad xpath expression: " + err.Error()))
	}

	var out []goja.Value
	iter := expr.Select(&nodeNavigator{node: root})
	for iter.MoveNext() {
		nav, ok := iter.Current().(*nodeNavigator)
		if !ok {
			continue
		}
		out = append(out, r.elementToJS(goquery.NewDocumentFromNode(nav.node).Selection))
	}
	return vm.ToValue(out)
}

// nodeNavigator makes an x/net/html tree walkable by the xpath engine.
// attr==0 means the navigator sits on the node itself; attr>0 points at the
// node's (attr-1)th attribute.
type nodeNavigator struct {
	node *html.Node
	attr int
}

func (n *nodeNavigator) NodeType() xpath.NodeType {
	switch n.node.Type {
	case html.DocumentNode:
		return xpath.RootNode
	case html.TextNode:
		return xpath.TextNode
	case html.CommentNode:
		return xpath.CommentNode
	case html.ElementNode:
		if n.attr > 0 {
			return xpath.AttributeNode
		}
		return xpath.ElementNode
	}
	return xpath.ElementNode
}

func (n *nodeNavigator) LocalName() string {
	if n.node.Type != html.ElementNode {
		return ""
	}
	if n.attr > 0 && n.attr <= len(n.node.Attr) {
		return n.node.Attr[n.attr-1].Key
	}
	return n.node.Data
}

func (n *nodeNavigator) Prefix() string { return "" }

func (n *nodeNavigator) Value() string {
	switch n.node.Type {
	case html.TextNode, html.CommentNode:
		return n.node.Data
	case html.ElementNode:
		if n.attr > 0 && n.attr <= len(n.node.Attr) {
			return n.node.Attr[n.attr-1].Val
		}
	}
	return ""
}

func (n *nodeNavigator) String() string { return n.Value() }

func (n *nodeNavigator) Copy() xpath.NodeNavigator {
	clone := *n
	return &clone
}

func (n *nodeNavigator) MoveToRoot() {
	for n.node.Parent != nil {
		n.node = n.node.Parent
	}
	n.attr = 0
}

func (n *nodeNavigator) MoveToParent() bool {
	if n.node.Parent == nil {
		return false
	}
	n.node, n.attr = n.node.Parent, 0
	return true
}

func (n *nodeNavigator) MoveToNextAttribute() bool {
	if n.node.Type != html.ElementNode || n.attr >= len(n.node.Attr) {
		return false
	}
	n.attr++
	return true
}

func (n *nodeNavigator) MoveToChild() bool {
	if n.node.FirstChild == nil {
		return false
	}
	n.node, n.attr = n.node.FirstChild, 0
	return true
}

func (n *nodeNavigator) MoveToFirst() bool {
	if n.node.Parent == nil || n.node.Parent.FirstChild == nil {
		return false
	}
	n.node, n.attr = n.node.Parent.FirstChild, 0
	return true
}

func (n *nodeNavigator) MoveToNext() bool {
	if n.node.NextSibling == nil {
		return false
	}
	n.node, n.attr = n.node.NextSibling, 0
	return true
}

func (n *nodeNavigator) MoveToPrevious() bool {
	if n.node.PrevSibling == nil {
		return false
	}
	n.node, n.attr = n.node.PrevSibling, 0
	return true
}

func (n *nodeNavigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*nodeNavigator)
	if !ok {
		return false
	}
	n.node, n.attr = o.node, o.attr
	return true
}
