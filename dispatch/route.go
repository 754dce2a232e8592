// Package dispatch selects a conversion strategy for each request and runs
// it: base conversion with a single legacy retry, the image and AI paths,
// specialized converters, and the output write.
package dispatch

import (
	"github.com/Cortexa-LLC/mcp/src/mdconvert/converter"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/extract"
)

// Strategy names a conversion path.
type Strategy string

const (
	StrategyVideoURL    Strategy = "video_url"
	StrategyImage       Strategy = "image"
	StrategyAI          Strategy = "ai"
	StrategySpecialized Strategy = "specialized"
	StrategyURL         Strategy = "url"
	StrategyBase        Strategy = "base"
)

// RouteKey is everything routing may look at.
type RouteKey struct {
	Input string
	Ext   string
	IsURL bool
	Flags domain.Flags
}

// KeyFor derives the route key of req.
func KeyFor(req domain.ConversionRequest) RouteKey {
	ext := req.Ext
	if ext == "" {
		ext = domain.DetectExt(req.Input)
	}
	return RouteKey{Input: req.Input, Ext: ext, IsURL: req.IsURL(), Flags: req.Flags}
}

// Rule pairs a predicate with the strategy it selects.
type Rule struct {
	Name     string
	Match    func(RouteKey) bool
	Strategy Strategy
}

// Rules is the routing table. The first matching rule wins, so order
// matters: images never reach the AI path, and AI mode wins over the
// specialized converters.
var Rules = []Rule{
	{
		Name:     "video-url",
		Match:    func(k RouteKey) bool { return k.IsURL && converter.IsVideoURL(k.Input) },
		Strategy: StrategyVideoURL,
	},
	{
		Name:     "image",
		Match:    func(k RouteKey) bool { return !k.IsURL && extract.ImageExts[k.Ext] },
		Strategy: StrategyImage,
	},
	{
		Name:     "ai-mode",
		Match:    func(k RouteKey) bool { return k.Flags.UseAIMode },
		Strategy: StrategyAI,
	},
	{
		Name:     "specialized",
		Match:    func(k RouteKey) bool { return !k.IsURL && converter.IsSpecialized(k.Ext) },
		Strategy: StrategySpecialized,
	},
	{
		Name:     "web-page",
		Match:    func(k RouteKey) bool { return k.IsURL },
		Strategy: StrategyURL,
	},
}

// Route returns the strategy for req. It performs no I/O.
func Route(req domain.ConversionRequest) Strategy {
	return RouteWith(Rules, KeyFor(req))
}

// RouteWith applies rules to k, falling back to StrategyBase.
func RouteWith(rules []Rule, k RouteKey) Strategy {
	for _, r := range rules {
		if r.Match(k) {
			return r.Strategy
		}
	}
	return StrategyBase
}
