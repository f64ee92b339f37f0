package transfer

type InstagramTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type InstagramErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}

// InstagramPageList is the /me/accounts response used to discover which
// Facebook page carries the connected Instagram business account.
type InstagramPageList struct {
	Data []struct {
		ID                       string `json:"id"`
		Name                     string `json:"name"`
		InstagramBusinessAccount *struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	} `json:"data"`
}

type InstagramAccountInfo struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture_url"`
	FollowersCount int64  `json:"followers_count"`
	MediaCount     int64  `json:"media_count"`
}

type InstagramMedia struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     *int64 `json:"like_count"`
	CommentsCount *int64 `json:"comments_count"`
}

type InstagramMediaList struct {
	Data   []InstagramMedia `json:"data"`
	Paging struct {
		Cursors struct {
			Before string `json:"before"`
			After  string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

type InstagramInsightValue struct {
	Value   int64  `json:"value"`
	EndTime string `json:"end_time"`
}

type InstagramInsight struct {
	Name   string                  `json:"name"`
	Period string                  `json:"period"`
	Values []InstagramInsightValue `json:"values"`
}

type InstagramInsightList struct {
	Data []InstagramInsight `json:"data"`
}
