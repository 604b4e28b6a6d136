package source

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// OAuthConfig builds the installed-app OAuth2 config for the YouTube Data API.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{youtube.YoutubeForceSslScope},
	}
}

// YouTubeSubscribers reads the subscriber count of the authorized channel.
type YouTubeSubscribers struct {
	service *youtube.Service
}

// NewYouTubeSubscribers authenticates with a long-lived refresh token. Extra
// client options are appended, so tests can point it at a fake endpoint.
func NewYouTubeSubscribers(ctx context.Context, clientID, clientSecret, refreshToken string, opts ...option.ClientOption) (*YouTubeSubscribers, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, errors.New("youtube credentials are incomplete")
	}
	ts := OAuthConfig(clientID, clientSecret).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create youtube service")
	}
	return &YouTubeSubscribers{service: svc}, nil
}

// NewYouTubeSubscribersWithClient uses an already authorized HTTP client.
func NewYouTubeSubscribersWithClient(ctx context.Context, client *http.Client, endpoint string) (*YouTubeSubscribers, error) {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create youtube service")
	}
	return &YouTubeSubscribers{service: svc}, nil
}

func (y *YouTubeSubscribers) FetchMetric(ctx context.Context) (int, error) {
	resp, err := y.service.Channels.List([]string{"statistics"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return 0, errors.Wrap(err, "list channel statistics")
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return 0, errors.New("no channel found for the authorized account")
	}
	return int(resp.Items[0].Statistics.SubscriberCount), nil
}
