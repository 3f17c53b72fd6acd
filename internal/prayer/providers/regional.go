package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/i474232898/prayer-times/internal/httpx"
	"github.com/i474232898/prayer-times/internal/prayer"
)

// RegionalProvider queries a London Prayer Times style API. It answers
// only inside its coverage box and reports Asr, Maghrib and Isha on a
// 12-hour clock without AM/PM; the resolver corrects those.
type RegionalProvider struct {
	name     string
	apiKey   string
	baseURL  string
	coverage prayer.Region
	client   *httpx.Client
}

// NewRegionalProvider creates a provider covering prayer.GreaterLondon.
func NewRegionalProvider(client *http.Client, baseURL, apiKey string) *RegionalProvider {
	if baseURL == "" {
		baseURL = "https://www.londonprayertimes.com/api/times/"
	}
	return &RegionalProvider{
		name:     "londonprayertimes",
		apiKey:   apiKey,
		baseURL:  baseURL,
		coverage: prayer.GreaterLondon,
		client:   httpx.New("londonprayertimes", client, httpx.DefaultBackoff),
	}
}

func (p *RegionalProvider) Name() string {
	return p.name
}

func (p *RegionalProvider) Coverage() prayer.Region {
	return p.coverage
}

type regionalPayload struct {
	City    string `json:"city"`
	Date    string `json:"date"`
	Fajr    string `json:"fajr"`
	Sunrise string `json:"sunrise"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Asr2    string `json:"asr_2"`
	Magrib  string `json:"magrib"`
	Isha    string `json:"isha"`
}

func (p *RegionalProvider) Fetch(ctx context.Context, q prayer.Query) (prayer.SourceResult, error) {
	if p.apiKey == "" {
		return prayer.SourceResult{}, fmt.Errorf("regional api key is not configured")
	}

	values := url.Values{}
	values.Set("format", "json")
	values.Set("key", p.apiKey)
	values.Set("date", q.Date.Format("2006-01-02"))

	var payload regionalPayload
	if err := p.client.GetJSON(ctx, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), &payload); err != nil {
		return prayer.SourceResult{}, err
	}

	asr := payload.Asr
	if q.School == prayer.Hanafi && payload.Asr2 != "" {
		asr = payload.Asr2
	}

	return prayer.SourceResult{
		Timings: prayer.TimingSet{
			prayer.Fajr:    payload.Fajr,
			prayer.Sunrise: payload.Sunrise,
			prayer.Dhuhr:   payload.Dhuhr,
			prayer.Asr:     asr,
			prayer.Maghrib: payload.Magrib,
			prayer.Isha:    payload.Isha,
		},
		GregorianDate: payload.Date,
	}, nil
}
