package portal

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/medspa-portal/internal/model"
	"github.com/sells-group/medspa-portal/pkg/airtable"
	"github.com/sells-group/medspa-portal/pkg/analysis"
)

// AnalyzeRequest asks for an analysis of one photo.
type AnalyzeRequest struct {
	PatientID string `json:"patient_id"`
	ImageURL  string `json:"image_url"`
	Save      bool   `json:"save"`
}

// Analyze fetches the patient and runs the image analysis concurrently. If
// either fails the whole call fails. Findings are scaled for display and
// each recommendation gets its best gallery photo. With Save set, the score
// and findings are written back to the patient.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*model.AnalysisResult, error) {
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.PatientID = strings.TrimSpace(req.PatientID)
	if err := validateImageURL(req.ImageURL); err != nil {
		return nil, err
	}
	if req.Save && req.PatientID == "" {
		return nil, invalid("portal: patient_id is required to save an analysis")
	}
	if s.analysis == nil {
		return nil, eris.Wrap(ErrUnavailable, "portal: analysis service")
	}

	var (
		patient *model.Patient
		raw     *model.AnalysisResult
		cached  bool
	)
	g, gctx := errgroup.WithContext(ctx)
	if req.PatientID != "" {
		g.Go(func() error {
			rec, err := s.airtable.Get(gctx, s.cfg.Tables.Patients, req.PatientID)
			if err != nil {
				return eris.Wrapf(err, "portal: get patient %s", req.PatientID)
			}
			p := patientFromRecord(*rec)
			patient = &p
			return nil
		})
	}
	g.Go(func() error {
		var err error
		raw, cached, err = s.rawAnalysis(gctx, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := *raw
	res.ImageURL = req.ImageURL
	res.Cached = cached
	if patient != nil {
		res.PatientID = patient.ID
		res.PatientName = patient.Name
	}

	res.Findings = s.Mapper(ctx).ApplyAll(raw.Findings)
	res.Recommendations = make([]model.Recommendation, len(raw.Recommendations))
	for i, rec := range raw.Recommendations {
		rec.Photo = s.catalog.Best(rec.Treatment, rec.Serves)
		res.Recommendations[i] = rec
	}

	if req.Save {
		if _, err := s.airtable.Update(ctx, s.cfg.Tables.Patients, req.PatientID, airtable.Fields{
			"Analysis Score": res.OverallScore,
			"Findings":       encodeFindings(res.Findings),
			"Photo URL":      req.ImageURL,
		}); err != nil {
			return nil, eris.Wrapf(err, "portal: save analysis for %s", req.PatientID)
		}
		res.Saved = true
	}

	zap.L().Info("portal: analysis complete",
		zap.String("patient_id", req.PatientID),
		zap.Int("findings", len(res.Findings)),
		zap.Bool("cached", cached),
		zap.Bool("saved", res.Saved),
	)
	return &res, nil
}

// rawAnalysis returns the unscaled analysis, from the cache when possible.
func (s *Service) rawAnalysis(ctx context.Context, req AnalyzeRequest) (*model.AnalysisResult, bool, error) {
	if s.store != nil {
		hit, err := s.store.GetCachedAnalysis(ctx, req.ImageURL)
		if err != nil {
			zap.L().Warn("portal: analysis cache read failed", zap.Error(err))
		} else if hit != nil {
			return hit, true, nil
		}
	}

	resp, err := s.analysis.Analyze(ctx, analysis.Request{ImageURL: req.ImageURL, PatientID: req.PatientID})
	if err != nil {
		return nil, false, eris.Wrap(err, "portal: analyze image")
	}
	raw := resultFromResponse(resp)
	raw.AnalyzedAt = s.now().UTC()

	if s.store != nil && s.cfg.AnalysisTTL > 0 {
		if err := s.store.SetCachedAnalysis(ctx, req.ImageURL, raw, s.cfg.AnalysisTTL); err != nil {
			zap.L().Warn("portal: analysis cache write failed", zap.Error(err))
		}
	}
	return raw, false, nil
}

func resultFromResponse(resp *analysis.Response) *model.AnalysisResult {
	res := &model.AnalysisResult{
		OverallScore:    resp.OverallScore,
		Findings:        make([]model.Finding, 0, len(resp.Issues)),
		Recommendations: make([]model.Recommendation, 0, len(resp.Recommendations)),
	}
	for _, is := range resp.Issues {
		if strings.TrimSpace(is.Name) == "" {
			continue
		}
		res.Findings = append(res.Findings, model.Finding{
			Name:        is.Name,
			Score:       is.Score,
			Level:       is.Severity,
			Area:        is.Area,
			Confidence:  is.Confidence,
			Description: is.Description,
		})
	}
	for _, r := range resp.Recommendations {
		if strings.TrimSpace(r.Treatment) == "" {
			continue
		}
		res.Recommendations = append(res.Recommendations, model.Recommendation{
			Treatment: r.Treatment,
			Serves:    r.Serves,
			Priority:  r.Priority,
			Reason:    r.Reason,
		})
	}
	for _, a := range resp.Areas {
		res.Areas = append(res.Areas, model.AreaScore{Name: a.Name, Score: a.Score, Issues: a.Issues})
	}
	return res
}

func validateImageURL(raw string) error {
	if raw == "" {
		return invalid("portal: image_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("portal: image_url must be an http(s) URL")
	}
	return nil
}
