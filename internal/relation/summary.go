package relation

// Counts holds the summary metrics shown on the dashboard.
type Counts struct {
	Followers        int     `json:"followers"`
	Following        int     `json:"following"`
	Mutuals          int     `json:"mutuals"`
	NotFollowingBack int     `json:"not_following_back"`
	NotFollowedBack  int     `json:"not_followed_back"`
	FollowBackRatio  float64 `json:"follow_back_ratio"`
	ActiveFollowers  int     `json:"active_followers"`
	AvgEngagement    float64 `json:"avg_engagement"`
}

// Summarize computes counts for a snapshot. FollowBackRatio is the share of
// followed accounts that follow back; zero when nothing is followed.
func Summarize(s Snapshot) Counts {
	c := Counts{
		Followers:        len(s.Followers),
		Following:        len(s.Following),
		Mutuals:          len(s.Mutuals),
		NotFollowingBack: len(s.NotFollowingBack),
		NotFollowedBack:  len(s.NotFollowedBack),
	}
	if c.Following > 0 {
		c.FollowBackRatio = float64(c.Following-c.NotFollowingBack) / float64(c.Following)
	}
	total := 0
	for _, u := range s.Followers {
		if u.IsActive {
			c.ActiveFollowers++
		}
		total += u.EngagementScore
	}
	if c.Followers > 0 {
		c.AvgEngagement = float64(total) / float64(c.Followers)
	}
	return c
}
