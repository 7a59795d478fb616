package types

// Cloud function calls, client -> server, as POST /functions/{name}.
//
// Success bodies wrap the value in {"result": ...}. Failures answer a non-2xx
// status with a FunctionError body.

const (
	FnJoinRoom     = "joinRoom"
	FnStartGame    = "startGame"
	FnHitTarget    = "hitTarget"
	FnGetRoomState = "getRoomState"
)

// CodeStaleSpawn marks a hit for a spawn that was already scored or replaced.
const CodeStaleSpawn = 409

type FunctionResponse[T any] struct {
	Result T `json:"result"`
}

type FunctionError struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

type JoinRoomRequest struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
}

type JoinRoomResult struct {
	RoomID    string `json:"roomId"`
	IsCreator bool   `json:"isCreator"`
	Creator   string `json:"creator"`
}

type StartGameRequest struct {
	RoomID string `json:"roomId"`
}

type HitTargetRequest struct {
	RoomID  string `json:"roomId"`
	SpawnID string `json:"spawnId"`
	Player  string `json:"player"`
}

type RoomStateRequest struct {
	RoomID string `json:"roomId"`
}

// RoomStateResult is the snapshot used to refresh after a reconnect.
type RoomStateResult struct {
	Score     Scoreboard `json:"score"`
	Round     *float64   `json:"round,omitempty"`
	MaxRounds *float64   `json:"maxRounds,omitempty"`
}
