package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/carpenike/repcoach/internal/logger"
)

// minLandmarkConfidence drops pose landmarks the model is unsure about.
const minLandmarkConfidence = 0.5

// VideoAnnotator extracts labels and pose data from a stored video.
type VideoAnnotator interface {
	Annotate(ctx context.Context, gcsURI string, pose bool) (*VideoAnnotation, error)
}

// Label is one entity recognized in a video.
type Label struct {
	Name       string
	Confidence float64
}

// VideoAnnotation summarizes what the video model saw.
type VideoAnnotation struct {
	Labels []Label // highest confidence first
	People int
	Frames int
	Length time.Duration
	// LandmarkRange is the vertical travel of each pose landmark in
	// normalized frame units (0 to 1).
	LandmarkRange map[string]float64
}

// Describe renders the annotation as plain text for a language model prompt.
func (v *VideoAnnotation) Describe() string {
	if v == nil {
		return "not available"
	}
	var b strings.Builder
	if len(v.Labels) > 0 {
		parts := make([]string, 0, len(v.Labels))
		for _, l := range v.Labels {
			parts = append(parts, fmt.Sprintf("%s (%.2f)", l.Name, l.Confidence))
		}
		fmt.Fprintf(&b, "labels: %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(&b, "people tracked: %d, frames: %d, length: %.1fs\n", v.People, v.Frames, v.Length.Seconds())

	if len(v.LandmarkRange) > 0 {
		names := make([]string, 0, len(v.LandmarkRange))
		for name := range v.LandmarkRange {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if v.LandmarkRange[names[i]] == v.LandmarkRange[names[j]] {
				return names[i] < names[j]
			}
			return v.LandmarkRange[names[i]] > v.LandmarkRange[names[j]]
		})
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s %.2f", name, v.LandmarkRange[name]))
		}
		fmt.Fprintf(&b, "vertical range of motion: %s\n", strings.Join(parts, ", "))
	}
	return strings.TrimSpace(b.String())
}

// VideoIntelligence implements VideoAnnotator with Google Cloud Video
// Intelligence label and person detection.
type VideoIntelligence struct {
	client     *videointelligence.Client
	log        *logger.Logger
	maxRetries int
}

// NewVideoIntelligence creates a client. An empty credentialsFile uses the
// ambient application default credentials.
func NewVideoIntelligence(ctx context.Context, credentialsFile string, log *logger.Logger) (*VideoIntelligence, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := videointelligence.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("analysis: videointelligence client: %w", err)
	}
	return &VideoIntelligence{client: c, log: log.With("component", "videointelligence"), maxRetries: 3}, nil
}

func (v *VideoIntelligence) Close() error {
	return v.client.Close()
}

// Annotate runs label detection, plus person detection with pose landmarks
// when pose is set.
func (v *VideoIntelligence) Annotate(ctx context.Context, gcsURI string, pose bool) (*VideoAnnotation, error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("analysis: video uri must be gs://..., got %q", gcsURI)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	req := &vipb.AnnotateVideoRequest{
		InputUri: gcsURI,
		Features: []vipb.Feature{vipb.Feature_LABEL_DETECTION},
		VideoContext: &vipb.VideoContext{
			LabelDetectionConfig: &vipb.LabelDetectionConfig{
				LabelDetectionMode: vipb.LabelDetectionMode_SHOT_AND_FRAME_MODE,
			},
		},
	}
	if pose {
		req.Features = append(req.Features, vipb.Feature_PERSON_DETECTION)
		req.VideoContext.PersonDetectionConfig = &vipb.PersonDetectionConfig{
			IncludeBoundingBoxes: true,
			IncludePoseLandmarks: true,
		}
	}

	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= v.maxRetries; attempt++ {
		resp, err := v.annotateOnce(ctx, req)
		if err == nil {
			return annotationFromResponse(resp), nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			break
		}
		v.log.Warn("video annotation retry", "attempt", attempt+1, "code", code.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("analysis: annotate video: %w", last)
}

func (v *VideoIntelligence) annotateOnce(ctx context.Context, req *vipb.AnnotateVideoRequest) (*vipb.AnnotateVideoResponse, error) {
	op, err := v.client.AnnotateVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func annotationFromResponse(resp *vipb.AnnotateVideoResponse) *VideoAnnotation {
	out := &VideoAnnotation{LandmarkRange: map[string]float64{}}
	if resp == nil || len(resp.AnnotationResults) == 0 || resp.AnnotationResults[0] == nil {
		return out
	}
	ar := resp.AnnotationResults[0]

	best := map[string]float64{}
	collect := func(anns []*vipb.LabelAnnotation) {
		for _, la := range anns {
			if la == nil || la.Entity == nil || strings.TrimSpace(la.Entity.Description) == "" {
				continue
			}
			name := strings.ToLower(strings.TrimSpace(la.Entity.Description))
			for _, seg := range la.Segments {
				if seg == nil {
					continue
				}
				if c := float64(seg.Confidence); c > best[name] {
					best[name] = c
				}
			}
		}
	}
	collect(ar.SegmentLabelAnnotations)
	collect(ar.ShotLabelAnnotations)

	for name, conf := range best {
		out.Labels = append(out.Labels, Label{Name: name, Confidence: conf})
	}
	sort.Slice(out.Labels, func(i, j int) bool {
		if out.Labels[i].Confidence == out.Labels[j].Confidence {
			return out.Labels[i].Name < out.Labels[j].Name
		}
		return out.Labels[i].Confidence > out.Labels[j].Confidence
	})

	lo := map[string]float64{}
	hi := map[string]float64{}
	var maxOffset float64
	for _, pda := range ar.PersonDetectionAnnotations {
		if pda == nil {
			continue
		}
		for _, track := range pda.Tracks {
			if track == nil {
				continue
			}
			out.People++
			for _, obj := range track.TimestampedObjects {
				if obj == nil {
					continue
				}
				out.Frames++
				if s := durToSec(obj.TimeOffset); s > maxOffset {
					maxOffset = s
				}
				for _, lm := range obj.Landmarks {
					if lm == nil || lm.Point == nil || lm.Confidence < minLandmarkConfidence {
						continue
					}
					y := float64(lm.Point.Y)
					if cur, ok := lo[lm.Name]; !ok || y < cur {
						lo[lm.Name] = y
					}
					if cur, ok := hi[lm.Name]; !ok || y > cur {
						hi[lm.Name] = y
					}
				}
			}
		}
	}
	for name, low := range lo {
		out.LandmarkRange[name] = hi[name] - low
	}
	out.Length = time.Duration(maxOffset * float64(time.Second))
	return out
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}
