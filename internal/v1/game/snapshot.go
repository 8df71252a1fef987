package game

// snapshotPlayer renders one player for the wire.
func (r *Room) snapshotPlayer(p *Player) PlayerSnapshot {
	return PlayerSnapshot{
		UserID:      p.Info.UserID,
		DisplayName: p.Info.DisplayName,
		AvatarURL:   p.Info.AvatarURL,
		Score:       p.ScoreGame,
		Ready:       p.Ready,
		IsDrawer:    p.IsDrawer,
		HasGuessed:  p.HasGuessed,
		Connected:   p.Conn == ConnConnected,
		IsHost:      r.cfg.IsPrivate && p.Info.UserID == r.hostID,
	}
}

// snapshotRoom renders the room for one recipient. The drawer's copy
// includes the secret word; everyone else gets the pattern only.
func (r *Room) snapshotRoom(recipient *Player) RoomSnapshot {
	snap := r.snapshotRoomPublic()
	if r.turn != nil && snap.Turn != nil && recipient != nil {
		if recipient.Info.UserID == r.turn.drawerID && r.turn.word != "" {
			t := *snap.Turn
			t.Word = r.turn.word
			snap.Turn = &t
		}
	}
	if r.status == StatusWaiting {
		snap.Lobby = append([]LobbyMessage(nil), r.lobby.messages...)
	}
	return snap
}

// snapshotRoomPublic renders the room as every subscriber may see it.
func (r *Room) snapshotRoomPublic() RoomSnapshot {
	snap := RoomSnapshot{
		RoomID:     r.cfg.ID,
		Status:     r.status,
		Settings:   r.settings,
		RoundIndex: r.roundIndex,
	}
	if r.cfg.IsPrivate {
		snap.HostID = r.hostID
	}
	for _, id := range r.order {
		if p := r.players[id]; p != nil {
			snap.Players = append(snap.Players, r.snapshotPlayer(p))
		}
	}
	if t := r.turn; t != nil && (r.status == StatusWordSelection || r.status == StatusDrawing) {
		ts := TurnSnapshot{
			TurnID:      r.turnID,
			DrawerID:    t.drawerID,
			RoundIndex:  r.roundIndex,
			TimeTotalMs: t.totalMs,
		}
		if r.status == StatusDrawing {
			ts.WordPattern = r.patternFor(nil)
			remaining := t.totalMs - r.cfg.Clock.Now().Sub(t.startedAt).Milliseconds()
			if remaining < 0 {
				remaining = 0
			}
			ts.TimeRemainingMs = remaining
		}
		snap.Turn = &ts
	}
	return snap
}
