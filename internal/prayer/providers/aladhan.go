package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/prayer-times/internal/httpx"
	"github.com/i474232898/prayer-times/internal/prayer"
)

// AladhanProvider implements prayer.Source for the AlAdhan timings API.
// It works for any coordinate and reports its own timezone.
type AladhanProvider struct {
	name    string
	baseURL string
	method  int
	client  *httpx.Client
}

func NewAladhanProvider(client *http.Client, baseURL string, method int) *AladhanProvider {
	if baseURL == "" {
		baseURL = "https://api.aladhan.com/v1"
	}
	return &AladhanProvider{
		name:    "aladhan",
		baseURL: strings.TrimRight(baseURL, "/"),
		method:  method,
		client:  httpx.New("aladhan", client, httpx.DefaultBackoff),
	}
}

func (p *AladhanProvider) Name() string {
	return p.name
}

type aladhanPayload struct {
	Code int `json:"code"`
	Data struct {
		Timings map[string]string `json:"timings"`
		Date    struct {
			Readable  string `json:"readable"`
			Gregorian struct {
				Date string `json:"date"`
			} `json:"gregorian"`
			Hijri struct {
				Date  string `json:"date"`
				Day   string `json:"day"`
				Year  string `json:"year"`
				Month struct {
					En string `json:"en"`
				} `json:"month"`
			} `json:"hijri"`
		} `json:"date"`
		Meta struct {
			Timezone string `json:"timezone"`
		} `json:"meta"`
	} `json:"data"`
}

func (p *AladhanProvider) Fetch(ctx context.Context, q prayer.Query) (prayer.SourceResult, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(q.Coordinate.Latitude, 'f', 6, 64))
	values.Set("longitude", strconv.FormatFloat(q.Coordinate.Longitude, 'f', 6, 64))
	values.Set("method", strconv.Itoa(p.method))
	values.Set("school", strconv.Itoa(int(q.School)))

	u := fmt.Sprintf("%s/timings/%s?%s", p.baseURL, q.Date.Format("02-01-2006"), values.Encode())

	var payload aladhanPayload
	if err := p.client.GetJSON(ctx, u, &payload); err != nil {
		return prayer.SourceResult{}, err
	}
	if len(payload.Data.Timings) == 0 {
		return prayer.SourceResult{}, fmt.Errorf("aladhan returned no timings (code %d)", payload.Code)
	}

	timings := make(prayer.TimingSet, len(prayer.Ordered))
	for _, n := range prayer.Ordered {
		timings[n] = payload.Data.Timings[string(n)]
	}

	hijri := payload.Data.Date.Hijri
	hijriDate := hijri.Date
	if hijri.Day != "" && hijri.Month.En != "" {
		hijriDate = fmt.Sprintf("%s %s %s", hijri.Day, hijri.Month.En, hijri.Year)
	}

	return prayer.SourceResult{
		Timings:       timings,
		Timezone:      payload.Data.Meta.Timezone,
		GregorianDate: payload.Data.Date.Readable,
		HijriDate:     hijriDate,
	}, nil
}
