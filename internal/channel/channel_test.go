package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"spiralmem/internal/platform"
)

func sampleVideos() []platform.ChannelVideo {
	return []platform.ChannelVideo{
		{ID: "a", Title: "first upload", DurationSec: 600, ViewCount: 10},
		{ID: "b", Title: "a short clip", DurationSec: 30, ViewCount: 500},
		{ID: "c", Title: "live now", DurationSec: 3600, ViewCount: 5, IsLive: true},
		{ID: "d", Title: "second upload", DurationSec: 1200, ViewCount: 100},
	}
}

func TestFilterVideosExcludesShortsAndLiveByDefault(t *testing.T) {
	out := filterVideos(sampleVideos(), FilterOptions{})
	var ids []string
	for _, v := range out {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"a", "d"}, ids)
}

func TestFilterVideosIncludesShortsAndLiveWhenRequested(t *testing.T) {
	out := filterVideos(sampleVideos(), FilterOptions{IncludeShorts: true, IncludeLiveStreams: true})
	assert.Len(t, out, 4)
}

func TestFilterVideosDurationBounds(t *testing.T) {
	out := filterVideos(sampleVideos(), FilterOptions{IncludeShorts: true, IncludeLiveStreams: true, MinDurationSec: 700})
	require := assert.New(t)
	require.Len(out, 2)
	assert.ElementsMatch(t, []string{"c", "d"}, []string{out[0].ID, out[1].ID})
}

func TestFilterVideosKeywordFilter(t *testing.T) {
	out := filterVideos(sampleVideos(), FilterOptions{IncludeShorts: true, KeywordFilter: []string{"upload"}})
	assert.Len(t, out, 2)
}

func TestFilterVideosExcludeKeywords(t *testing.T) {
	out := filterVideos(sampleVideos(), FilterOptions{ExcludeKeywords: []string{"second"}})
	assert.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestSortVideosMostPopular(t *testing.T) {
	videos := sampleVideos()
	sortVideos(videos, PriorityMostPopular)
	assert.Equal(t, "b", videos[0].ID)
}

func TestSortVideosLongestFirst(t *testing.T) {
	videos := sampleVideos()
	sortVideos(videos, PriorityLongestFirst)
	assert.Equal(t, "c", videos[0].ID)
}

func TestSortVideosOldestFirstReversesOrder(t *testing.T) {
	videos := sampleVideos()
	sortVideos(videos, PriorityOldestFirst)
	assert.Equal(t, "d", videos[0].ID)
	assert.Equal(t, "a", videos[3].ID)
}

func TestSortVideosNewestFirstLeavesOrder(t *testing.T) {
	videos := sampleVideos()
	sortVideos(videos, PriorityNewestFirst)
	assert.Equal(t, "a", videos[0].ID)
}
