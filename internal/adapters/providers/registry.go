package providers

import (
	"sort"

	"github.com/rs/zerolog/log"

	"umrah_prices/internal/domain"
)

// Registry holds the providers enabled for this process. It is populated
// once at startup from configuration; a source missing credentials is
// disabled here, at config-load time, not by catching auth failures later.
type Registry struct {
	offers    map[string]domain.OfferProvider
	order     []domain.OfferProvider // fan-out priority, primary first
	transport map[string]domain.TransportProvider
	cfgs      map[string]Config
}

func NewRegistry(cfgs []Config) *Registry {
	r := &Registry{
		offers:    make(map[string]domain.OfferProvider),
		transport: make(map[string]domain.TransportProvider),
		cfgs:      make(map[string]Config),
	}

	sorted := make([]Config, len(cfgs))
	copy(sorted, cfgs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	for _, cfg := range sorted {
		if cfg.RequiresKey && cfg.APIKey == "" {
			log.Info().Str("provider", cfg.Name).Msg("provider disabled: no credentials")
			continue
		}
		r.cfgs[cfg.Name] = cfg

		switch cfg.Name {
		case "xotelo":
			r.addOffer(NewXotelo(cfg))
		case "makcorps":
			r.addOffer(NewMakCorps(cfg))
		case "amadeus":
			r.addOffer(NewAmadeus(cfg))
		case "demo":
			r.addOffer(NewDemo())
		case "haramain":
			r.transport[cfg.Name] = NewHaramain(cfg)
		case "saptco":
			r.transport[cfg.Name] = NewSaptco(cfg)
		default:
			log.Warn().Str("provider", cfg.Name).Msg("unknown provider in config, skipping")
		}
	}
	return r
}

func (r *Registry) addOffer(p domain.OfferProvider) {
	r.offers[p.Name()] = p
	r.order = append(r.order, p)
}

func (r *Registry) Offer(name string) (domain.OfferProvider, bool) {
	p, ok := r.offers[name]
	return p, ok
}

// Fanout returns offer providers in priority order for explicit
// provider fan-out; default dispatch targets one provider per job.
func (r *Registry) Fanout() []domain.OfferProvider {
	out := make([]domain.OfferProvider, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Transport(name string) (domain.TransportProvider, bool) {
	p, ok := r.transport[name]
	return p, ok
}

func (r *Registry) Config(name string) (Config, bool) {
	c, ok := r.cfgs[name]
	return c, ok
}

// OfferNames lists enabled hotel-price sources, priority order.
func (r *Registry) OfferNames() []string {
	out := make([]string, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, p.Name())
	}
	return out
}

// TransportNames lists enabled transport operators.
func (r *Registry) TransportNames() []string {
	out := make([]string, 0, len(r.transport))
	for name := range r.transport {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
