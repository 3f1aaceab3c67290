package contract

type FollowRequest struct {
	TargetUID string `json:"target_uid"`
}

type ToggleFollowResponse struct {
	Following bool `json:"following"`
}

type User struct {
	UID            string `json:"uid"`
	Nickname       string `json:"nickname"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Photo          string `json:"photo"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
}

type UsersResponse struct {
	Items      []User  `json:"items"`
	NextCursor *string `json:"next_cursor"`
}
