package podcast

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oncobrief/oncobrief/internal/config"
	"github.com/oncobrief/oncobrief/internal/domain"
	"github.com/oncobrief/oncobrief/internal/observability"
)

// SpeechSynthesizer is the subset of the Polly client the generator uses.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// NewSynthesizer builds a Polly client from the standard AWS credential
// chain.
func NewSynthesizer(ctx context.Context, region string) (*polly.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return polly.NewFromConfig(awsCfg), nil
}

// Generator synthesizes podcast episodes and persists the audio and
// transcript under the public directory.
type Generator struct {
	synthesizer SpeechSynthesizer
	cfg         config.PollyConfig
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// NewGenerator creates a podcast generator.
func NewGenerator(synthesizer SpeechSynthesizer, cfg config.PollyConfig, logger zerolog.Logger, metrics *observability.Metrics) *Generator {
	return &Generator{
		synthesizer: synthesizer,
		cfg:         cfg,
		logger:      logger.With().Str("component", "podcast").Logger(),
		metrics:     metrics,
	}
}

// GenerateDigestPodcast narrates a digest episode. The returned podcast is
// not persisted to a repository by this method.
func (g *Generator) GenerateDigestPodcast(ctx context.Context, digest *domain.Digest, articles []*domain.Article) (*domain.Podcast, error) {
	if digest == nil || digest.ID == uuid.Nil {
		return nil, domain.NewValidationError("digestId", "digest is required")
	}
	if len(articles) == 0 {
		return nil, domain.NewValidationError("articles", "no articles provided")
	}

	script := BuildDigestScript(digest.Title, articles)

	audioName := fmt.Sprintf("podcast-%s.mp3", digest.ID)
	scriptName := fmt.Sprintf("podcast-script-%s.txt", digest.ID)

	audioURL, scriptURL, err := g.produce(ctx, script, audioName, scriptName)
	if err != nil {
		return nil, err
	}

	return &domain.Podcast{
		DigestID:  digest.ID,
		AudioURL:  audioURL,
		ScriptURL: scriptURL,
		Script:    script,
	}, nil
}

// GenerateResearchPodcast narrates a topic meta-analysis episode.
func (g *Generator) GenerateResearchPodcast(ctx context.Context, topic string, summary *domain.TopicSummary) (*domain.Podcast, error) {
	if summary == nil {
		return nil, domain.NewValidationError("summary", "research summary data is required")
	}

	script := BuildResearchScript(topic, summary)

	id := uuid.New()
	audioName := fmt.Sprintf("research-podcast-%s.mp3", id)
	scriptName := fmt.Sprintf("research-podcast-script-%s.txt", id)

	audioURL, scriptURL, err := g.produce(ctx, script, audioName, scriptName)
	if err != nil {
		return nil, err
	}

	return &domain.Podcast{
		ID:        id,
		AudioURL:  audioURL,
		ScriptURL: scriptURL,
		Script:    script,
	}, nil
}

// produce synthesizes the script and writes the audio and transcript files,
// returning their public URLs. The transcript is written before synthesis
// so it survives for inspection even when Polly fails.
func (g *Generator) produce(ctx context.Context, script, audioName, scriptName string) (string, string, error) {
	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	scriptURL := g.publicURL(scriptName)
	if err := os.WriteFile(filepath.Join(g.cfg.OutputDir, scriptName), []byte(script), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write transcript: %w", err)
	}

	audio, err := g.synthesize(ctx, script)
	if err != nil {
		return "", scriptURL, err
	}

	if err := os.WriteFile(filepath.Join(g.cfg.OutputDir, audioName), audio, 0o644); err != nil {
		return "", scriptURL, fmt.Errorf("failed to write audio: %w", err)
	}

	g.metrics.PodcastsGenerated.Inc()
	g.logger.Info().
		Str("audio", audioName).
		Int("script_chars", len(script)).
		Int("audio_bytes", len(audio)).
		Msg("podcast synthesized")

	return g.publicURL(audioName), scriptURL, nil
}

// synthesize runs each SSML chunk through Polly and concatenates the MP3
// segments in order.
func (g *Generator) synthesize(ctx context.Context, script string) ([]byte, error) {
	chunks := SplitIntoChunks(script, MaxChunkSize)
	g.metrics.PodcastChunks.Observe(float64(len(chunks)))

	var audio []byte
	for i, chunk := range chunks {
		out, err := g.synthesizer.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
			Text:         aws.String(chunk),
			OutputFormat: types.OutputFormatMp3,
			VoiceId:      types.VoiceId(g.cfg.VoiceID),
			TextType:     types.TextTypeSsml,
			Engine:       types.EngineStandard,
		})
		if err != nil {
			return nil, fmt.Errorf("polly synthesis failed for chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if out.AudioStream == nil {
			return nil, fmt.Errorf("polly returned no audio stream for chunk %d/%d", i+1, len(chunks))
		}

		data, err := io.ReadAll(out.AudioStream)
		closeErr := out.AudioStream.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read polly audio stream: %w", err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("failed to close polly audio stream: %w", closeErr)
		}
		audio = append(audio, data...)
	}

	return audio, nil
}

func (g *Generator) publicURL(name string) string {
	return g.cfg.PublicPath + "/" + name
}
