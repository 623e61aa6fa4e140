package alquran

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.alquran.cloud/v1"

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

var _ domain.ContentPort = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.Named("alquran"),
	}
}

// ListSurahs lists all chapters
func (c *Client) ListSurahs(ctx context.Context) ([]domain.Surah, error) {
	var data []surahResponse
	if err := c.get(ctx, "/surah", &data); err != nil {
		return nil, fmt.Errorf("list surahs: %w", err)
	}

	surahs := make([]domain.Surah, len(data))
	for i := range data {
		surahs[i] = data[i].toDomain()
	}
	return surahs, nil
}

// Surah retrieves a chapter descriptor by number
func (c *Client) Surah(ctx context.Context, number int) (*domain.Surah, error) {
	if err := domain.SurahSelection(number).Validate(); err != nil {
		return nil, err
	}

	var data surahResponse
	if err := c.get(ctx, fmt.Sprintf("/surah/%d", number), &data); err != nil {
		return nil, fmt.Errorf("get surah %d: %w", number, err)
	}

	surah := data.toDomain()
	return &surah, nil
}

// Verses lists the verses of a surah or juz under an edition
func (c *Client) Verses(ctx context.Context, sel domain.Selection, edition string) (*domain.EditionListing, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/%s/%d/%s", sel.Scope, sel.Number, url.PathEscape(edition))

	var data listingResponse
	if err := c.get(ctx, path, &data); err != nil {
		return nil, fmt.Errorf("get %s verses (%s): %w", sel, edition, err)
	}

	listing := &domain.EditionListing{
		Edition: edition,
		Verses:  make([]domain.Ayah, len(data.Ayahs)),
		Audio:   make([]domain.AudioRef, len(data.Ayahs)),
		Surahs:  data.surahNumbers(sel),
	}

	for i, a := range data.Ayahs {
		surahNumber := a.Surah.Number
		if surahNumber == 0 && sel.Scope == domain.ScopeSurah {
			surahNumber = data.Number
		}

		listing.Verses[i] = domain.Ayah{
			Number:        a.Number,
			Text:          a.Text,
			NumberInSurah: a.NumberInSurah,
			SurahNumber:   surahNumber,
			Juz:           a.Juz,
			Manzil:        a.Manzil,
			Page:          a.Page,
			Ruku:          a.Ruku,
			HizbQuarter:   a.HizbQuarter,
			Sajda:         bool(a.Sajda),
		}

		// Audio editions carry the clip URL in "audio"; some mirrors put it in "text".
		audioURL := a.Audio
		if audioURL == "" && isURL(a.Text) {
			audioURL = a.Text
		}
		listing.Audio[i] = domain.AudioRef{URL: audioURL, Secondary: a.AudioSecondary}
	}

	return listing, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("content request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(body, 256))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		return fmt.Errorf("API error (code %d): %s", env.Code, truncate(env.Data, 256))
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return fmt.Errorf("empty data in response")
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

type envelope struct {
	Code   int             `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type surahResponse struct {
	Number                 int    `json:"number"`
	Name                   string `json:"name"`
	EnglishName            string `json:"englishName"`
	EnglishNameTranslation string `json:"englishNameTranslation"`
	NumberOfAyahs          int    `json:"numberOfAyahs"`
	RevelationType         string `json:"revelationType"`
}

func (s *surahResponse) toDomain() domain.Surah {
	return domain.Surah{
		Number:                 s.Number,
		Name:                   s.Name,
		EnglishName:            s.EnglishName,
		EnglishNameTranslation: s.EnglishNameTranslation,
		NumberOfAyahs:          s.NumberOfAyahs,
		RevelationType:         s.RevelationType,
	}
}

type listingResponse struct {
	Number int                      `json:"number"`
	Ayahs  []ayahResponse           `json:"ayahs"`
	Surahs map[string]surahResponse `json:"surahs"`
}

func (l *listingResponse) surahNumbers(sel domain.Selection) []int {
	if sel.Scope == domain.ScopeSurah {
		return []int{sel.Number}
	}

	numbers := make([]int, 0, len(l.Surahs))
	for key, s := range l.Surahs {
		n := s.Number
		if n == 0 {
			n, _ = strconv.Atoi(key)
		}
		if n > 0 {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)
	return numbers
}

type ayahResponse struct {
	Number         int           `json:"number"`
	Text           string        `json:"text"`
	Audio          string        `json:"audio"`
	AudioSecondary []string      `json:"audioSecondary"`
	NumberInSurah  int           `json:"numberInSurah"`
	Surah          surahResponse `json:"surah"`
	Juz            int           `json:"juz"`
	Manzil         int           `json:"manzil"`
	Page           int           `json:"page"`
	Ruku           int           `json:"ruku"`
	HizbQuarter    int           `json:"hizbQuarter"`
	Sajda          sajdaFlag     `json:"sajda"`
}

// sajdaFlag decodes the API's sajda field, which is either false or an
// object describing the prostration.
type sajdaFlag bool

func (s *sajdaFlag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")), bytes.Equal(b, []byte("false")):
		*s = false
	case bytes.Equal(b, []byte("true")), b[0] == '{':
		*s = true
	default:
		return fmt.Errorf("unexpected sajda value %s", truncate(b, 32))
	}
	return nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
