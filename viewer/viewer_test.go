package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/store"
)

func sampleSnapshot(t *testing.T) game.Snapshot {
	t.Helper()
	b, err := game.BoardFromRows([][]int{
		{2, 0, 0, 4},
		{0, 2048, 0, 0},
		{0, 0, 4096, 0},
		{8, 0, 0, 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	return (&game.GameState{Board: b, Score: 120, Turn: 9}).Snapshot()
}

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestRenderBoardHTML(t *testing.T) {
	snap := sampleSnapshot(t)
	var buf bytes.Buffer
	if err := RenderBoardHTML(&buf, snap); err != nil {
		t.Fatal(err)
	}
	doc := parseHTML(t, buf.String())

	if n := doc.Find("#board tr").Length(); n != 4 {
		t.Fatalf("rows=%d", n)
	}
	if n := doc.Find("#board td").Length(); n != 16 {
		t.Fatalf("cells=%d", n)
	}
	var values []string
	doc.Find("td[data-value]").Each(func(_ int, s *goquery.Selection) {
		values = append(values, s.Text())
	})
	want := []string{"2", "4", "2048", "4096", "8", "2"}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("tiles (-want +got):\n%s", diff)
	}
	if !doc.Find(`td[data-row="2"][data-col="2"]`).HasClass("tile-super") {
		t.Fatalf("4096 should use the super class")
	}
	if got := doc.Find("#score").Text(); got != "120" {
		t.Fatalf("score=%q", got)
	}
}

func TestRenderPage_NoGame(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPage(&buf, nil); err != nil {
		t.Fatal(err)
	}
	doc := parseHTML(t, buf.String())
	if doc.Find(".waiting").Length() != 1 || doc.Find("#board").Length() != 0 {
		t.Fatalf("unexpected page: %s", buf.String())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readSnapshot(t *testing.T, conn *websocket.Conn) game.Snapshot {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return snap
}

func TestHub_StreamsSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(NewServer(hub, nil).Handler())
	defer srv.Close()

	first := sampleSnapshot(t)
	hub.Publish(first)
	waitFor(t, func() bool { return len(hub.broadcast) == 0 })

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if diff := cmp.Diff(first, readSnapshot(t, conn)); diff != "" {
		t.Fatalf("latest snapshot on connect (-want +got):\n%s", diff)
	}
	waitFor(t, func() bool { return hub.Clients() == 1 })

	second := first
	second.Turn = 10
	second.Score = 124
	hub.Publish(second)
	if diff := cmp.Diff(second, readSnapshot(t, conn)); diff != "" {
		t.Fatalf("broadcast snapshot (-want +got):\n%s", diff)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 0 })
}

func TestServer_IndexAndBoard(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewServer(hub, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/board")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("board before any game: %d", resp.StatusCode)
	}

	hub.Publish(sampleSnapshot(t))
	resp, err = http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if n := doc.Find("#live td").Length(); n != 16 {
		t.Fatalf("index cells=%d", n)
	}

	resp2, err := http.Get(srv.URL + "/api/games")
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("api without archive: %d", resp2.StatusCode)
	}
}

func writeArchive(t *testing.T, dir string) {
	t.Helper()
	game1 := []store.TurnRow{
		{GameID: "g1", Turn: 0, Strategy: "montecarlo", Rows: 2, Cols: 2, Cells: []int32{2, 0, 0, 2}, Direction: 0, Means: []float64{8, store.IllegalMean, 6, 6}},
		{GameID: "g1", Turn: 1, Strategy: "montecarlo", Rows: 2, Cols: 2, Cells: []int32{4, 0, 2, 0}, Score: 4, Direction: -1},
	}
	game2 := []store.TurnRow{
		{GameID: "g2", Turn: 0, Strategy: "random", Rows: 2, Cols: 2, Cells: []int32{2, 2, 0, 0}, Direction: 0},
		{GameID: "g2", Turn: 1, Strategy: "random", Rows: 2, Cols: 2, Cells: []int32{4, 0, 0, 2}, Score: 4, Direction: 2},
		{GameID: "g2", Turn: 2, Strategy: "random", Rows: 2, Cols: 2, Cells: []int32{4, 2, 0, 2}, Score: 4, Direction: -1},
	}
	for i := range game1 {
		game1[i].Outcome, game1[i].FinalScore, game1[i].MaxTile = "lost", 4, 4
	}
	for i := range game2 {
		game2[i].Outcome, game2[i].FinalScore, game2[i].MaxTile = "lost", 16, 8
	}
	if _, err := store.WriteTurnsParquetAtomic(dir, game1); err != nil {
		t.Fatal(err)
	}
	if _, err := store.WriteTurnsParquetAtomic(filepath.Join(dir, "more"), game2); err != nil {
		t.Fatal(err)
	}

	h, err := store.NewHistoryWriter(dir, "run1")
	if err != nil {
		t.Fatal(err)
	}
	for g := int32(0); g < 2; g++ {
		if err := h.Write(store.GenerationRow{RunID: "run1", Generation: g, Best: int64(100 + g), Mean: 50, Min: 10, BestMoves: "LLUR"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := h.Finalize(); err != nil {
		t.Fatal(err)
	}
}

func TestArchive_Queries(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir)
	archive := NewArchive([]string{dir}, time.Minute)
	defer archive.Close()
	ctx := context.Background()

	games, err := archive.Games(ctx, 10, 0, "score", "desc")
	if err != nil {
		t.Fatalf("Games: %v", err)
	}
	if games.Total != 2 || len(games.Games) != 2 || games.Games[0].GameID != "g2" {
		t.Fatalf("games=%+v", games)
	}
	if g := games.Games[0]; g.TurnCount != 3 || g.MaxTile != 8 || g.Strategy != "random" {
		t.Fatalf("summary=%+v", g)
	}
	page, err := archive.Games(ctx, 1, 1, "score", "desc")
	if err != nil || len(page.Games) != 1 || page.Games[0].GameID != "g1" {
		t.Fatalf("page=%+v err=%v", page, err)
	}

	turns, err := archive.Turns(ctx, "g1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns=%+v", turns)
	}
	if diff := cmp.Diff([][]int32{{2, 0}, {0, 2}}, turns[0].Grid); diff != "" {
		t.Fatalf("grid (-want +got):\n%s", diff)
	}
	if turns[0].Direction != "left" || turns[1].Direction != "" || len(turns[0].Means) != 4 {
		t.Fatalf("turn fields: %+v", turns)
	}

	history, err := archive.History(ctx, "run1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || history[1].Best != 101 || history[0].BestMoves != "LLUR" {
		t.Fatalf("history=%+v", history)
	}
}

func TestArchive_EmptyRoots(t *testing.T) {
	archive := NewArchive([]string{t.TempDir()}, time.Minute)
	defer archive.Close()
	games, err := archive.Games(context.Background(), 10, 0, "", "")
	if err != nil {
		t.Fatalf("Games on empty archive: %v", err)
	}
	if games.Total != 0 {
		t.Fatalf("games=%+v", games)
	}
	if h, err := archive.History(context.Background(), ""); err != nil || len(h) != 0 {
		t.Fatalf("history=%v err=%v", h, err)
	}
}

func TestServer_ArchiveRoutes(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir)
	archive := NewArchive([]string{dir}, time.Minute)
	defer archive.Close()
	srv := httptest.NewServer(NewServer(nil, archive).Handler())
	defer srv.Close()

	var games GamesResponse
	getJSON(t, srv.URL+"/api/games?sort=turns&dir=asc", &games)
	if games.Total != 2 || games.Games[0].GameID != "g1" {
		t.Fatalf("games=%+v", games)
	}
	var turns []Turn
	getJSON(t, srv.URL+"/api/games/g2/turns", &turns)
	if len(turns) != 3 || turns[1].Direction != "up" {
		t.Fatalf("turns=%+v", turns)
	}
	var history []store.GenerationRow
	getJSON(t, srv.URL+"/api/history", &history)
	if len(history) != 2 {
		t.Fatalf("history=%+v", history)
	}

	resp, err := http.Get(srv.URL + "/api/games/missing/turns")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing game status=%d", resp.StatusCode)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
