package httpapi

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/logging"
	"github.com/dmitrijs2005/zeladoria/internal/server/images"
	"github.com/dmitrijs2005/zeladoria/internal/server/policy"
	"github.com/dmitrijs2005/zeladoria/internal/server/reports"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/memory"
	"github.com/dmitrijs2005/zeladoria/internal/server/services"
	"github.com/dmitrijs2005/zeladoria/internal/server/sessions"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	url   string
	users *services.UserService
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	log := discardLogger()
	mem := memory.NewStore()
	d := services.Deps{Tx: mem, Repos: mem, Log: log}

	store, err := images.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	proc := images.NewProcessor(store, 64, 2, log)

	users := services.NewUserService(d, sessions.NewRepositoryStore(mem, mem.Conn()), "test-secret", time.Hour)
	srv := NewServer(":0", log, Services{
		Users:   users,
		Notes:   services.NewNoteService(d, policy.Rules{}, proc),
		Orders:  services.NewOrderService(d, policy.Rules{}),
		History: services.NewHistoryService(d),
	}, store, "/uploads/")

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	_, err = users.BootstrapAdmin(context.Background(), "root", "rootpw", "000")
	require.NoError(t, err)
	return &testApp{url: ts.URL, users: users}
}

func (a *testApp) anon() *resty.Client {
	return resty.New().SetBaseURL(a.url)
}

// login returns a client that sends the session token in the header.
func (a *testApp) login(t *testing.T, name, password string) *resty.Client {
	t.Helper()
	resp, err := a.anon().R().SetBody(map[string]string{"nome": name, "senha": password}).Post("/login")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())

	var body loginResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	require.True(t, body.Success)
	return a.anon().SetHeader(common.AccessTokenHeaderName, body.Token)
}

func (a *testApp) register(t *testing.T, admin *resty.Client, name, role string) {
	t.Helper()
	resp, err := admin.R().SetBody(map[string]string{
		"nome": name, "senha": "secret", "apartamento": "101", "tipo": role,
	}).Post("/cadastrar")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())
}

func decode[T any](t *testing.T, resp *resty.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body(), &v), resp.String())
	return v
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for x := 0; x < 200; x++ {
		img.Set(x, x%100, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

func TestScenario_RegisterLoginWhoAmI(t *testing.T) {
	app := newTestApp(t)
	root := app.login(t, "root", "rootpw")

	resp, err := root.R().SetBody(map[string]string{
		"nome": "A1", "senha": "secret", "apartamento": "101", "tipo": "admin",
	}).Post("/cadastrar")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())
	created := decode[messageResponse](t, resp)
	assert.NotZero(t, created.ID)

	a1 := app.login(t, "A1", "secret")
	resp, err = a1.R().Get("/user")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	me := decode[userResponse](t, resp)
	assert.Equal(t, "A1", me.Name)
	assert.Equal(t, "admin", me.Role)

	resp, err = root.R().SetBody(map[string]string{"nome": "A2"}).Post("/cadastrar")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, "Todos os campos são obrigatórios.", decode[messageResponse](t, resp).Message)
}

func TestLogin_Failures(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.anon().R().SetBody(map[string]string{"nome": "root", "senha": "nope"}).Post("/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	assert.Equal(t, "Usuário ou senha incorretos.", decode[messageResponse](t, resp).Message)

	resp, err = app.anon().R().SetHeader("Content-Type", "application/json").SetBody("{").Post("/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.anon().R().SetBody(map[string]string{"nome": "root", "senha": "rootpw"}).Post("/login")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == common.SessionCookieName {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	resp, err = app.anon().R().SetCookie(&http.Cookie{Name: common.SessionCookieName, Value: session.Value}).Get("/user")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	root := app.login(t, "root", "rootpw")

	resp, err := root.R().Post("/logout")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	resp, err = root.R().Get("/user")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	resp, err = app.anon().R().Post("/logout")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

func TestScenario_DuplicateOrder(t *testing.T) {
	app := newTestApp(t)
	root := app.login(t, "root", "rootpw")
	app.register(t, root, "R1", "morador")
	resident := app.login(t, "R1", "secret")

	resp, err := resident.R().SetFormData(map[string]string{"titulo": "Leak", "descricao": "kitchen sink"}).Post("/criar-nota")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())
	noteID := decode[messageResponse](t, resp).ID

	resp, err = root.R().SetBody(map[string]any{"descricao": "no note"}).Post("/ordens")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, "A nota é obrigatória.", decode[messageResponse](t, resp).Message)

	resp, err = root.R().SetBody(map[string]any{"nota_id": id(noteID), "descricao": "plumber dispatched"}).Post("/ordens")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	resp, err = root.R().SetBody(map[string]any{"nota_id": noteID, "descricao": "again"}).Post("/ordens")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Contains(t, decode[messageResponse](t, resp).Message, "já possui ordem")

	resp, err = resident.R().SetBody(map[string]any{"nota_id": noteID, "descricao": "mine"}).Post("/ordens")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = resident.R().Get("/ordens/nota/" + id(noteID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	order := decode[orderResponse](t, resp)
	assert.Equal(t, "Leak", order.NoteTitle)
	assert.Equal(t, "root", order.AdminName)
}

func TestScenario_CloseOrderCascades(t *testing.T) {
	app := newTestApp(t)
	root := app.login(t, "root", "rootpw")
	app.register(t, root, "R1", "morador")
	resident := app.login(t, "R1", "secret")

	resp, err := resident.R().SetFormData(map[string]string{"titulo": "Leak", "descricao": "kitchen sink"}).Post("/criar-nota")
	require.NoError(t, err)
	noteID := decode[messageResponse](t, resp).ID

	resp, err = root.R().SetBody(map[string]any{"nota_id": noteID, "descricao": "plumber dispatched"}).Post("/ordens")
	require.NoError(t, err)
	orderID := decode[messageResponse](t, resp).ID

	resp, err = root.R().SetBody(map[string]string{"descricao": "visited"}).Post("/ordens/" + id(orderID) + "/historico")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	resp, err = root.R().SetBody(map[string]string{"status": "encerrada"}).Put("/ordens/" + id(orderID) + "/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())

	resp, err = root.R().Get("/notas/" + id(noteID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "encerrada", decode[noteResponse](t, resp).Status)

	resp, err = root.R().SetBody(map[string]string{"status": "aberta"}).Put("/ordens/" + id(orderID) + "/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())

	resp, err = root.R().SetBody(map[string]string{"descricao": "late"}).Post("/ordens/" + id(orderID) + "/historico")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = root.R().SetBody(map[string]string{"status": "aberta"}).Put("/notas/" + id(noteID) + "/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = root.R().Get("/ordens/" + id(orderID) + "/historico")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	entries := decode[[]historyResponse](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "visited", entries[0].Description)

	// Residents no longer see any of it.
	resp, err = resident.R().Get("/notas/" + id(noteID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	resp, err = resident.R().Get("/ordens/nota/" + id(noteID))
	require.NoError(t, err)
	assert.Equal(t, "null", string(bytes.TrimSpace(resp.Body())))

	resp, err = resident.R().Get("/notas")
	require.NoError(t, err)
	assert.Empty(t, decode[[]noteResponse](t, resp))
}

func TestListFilters(t *testing.T) {
	app := newTestApp(t)
	root := app.login(t, "root", "rootpw")

	for _, title := range []string{"a", "b"} {
		resp, err := root.R().SetFormData(map[string]string{"titulo": title, "descricao": "x"}).Post("/criar-nota")
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode())
	}

	today := time.Now().Format(time.DateOnly)
	resp, err := root.R().SetQueryParams(map[string]string{"status": "aberta", "inicio": today, "fim": today}).Get("/notas")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	notes := decode[[]noteResponse](t, resp)
	require.Len(t, notes, 2)
	assert.Equal(t, "b", notes[0].Title)
	assert.Nil(t, notes[0].Image)

	resp, err = root.R().SetQueryParam("inicio", "2099-01-01").Get("/notas")
	require.NoError(t, err)
	assert.Empty(t, decode[[]noteResponse](t, resp))

	resp, err = root.R().SetQueryParam("inicio", "ontem").Get("/ordens")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())

	resp, err = root.R().SetQueryParam("status", "fechada").Get("/notas")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestSessionRequired(t *testing.T) {
	app := newTestApp(t)
	anon := app.anon()

	for _, path := range []string{"/user", "/notas", "/notas/1", "/ordens", "/ordens/1", "/ordens/1/historico", "/ordens/nota/1", "/ordens/relatorio"} {
		resp, err := anon.R().Get(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode(), path)
	}

	resp, err := anon.R().SetFormData(map[string]string{"titulo": "a", "descricao": "b"}).Post("/criar-nota")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	resp, err = anon.R().SetHeader(common.AccessTokenHeaderName, "forged").Get("/notas")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t)
	root := app.login(t, "root", "rootpw")

	for _, path := range []string{"/notas/999", "/notas/abc", "/ordens/999", "/ordens/999/historico"} {
		resp, err := root.R().Get(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode(), path)
	}
}

func TestNoteImageUploadAndServe(t *testing.T) {
	app := newTestApp(t)
	root := app.login(t, "root", "rootpw")

	resp, err := root.R().
		SetFormData(map[string]string{"titulo": "Lamp", "descricao": "hall"}).
		SetFileReader("imagem", "lamp.png", bytes.NewReader(pngBytes(t))).
		Post("/criar-nota")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())
	noteID := decode[messageResponse](t, resp).ID

	resp, err = root.R().Get("/notas/" + id(noteID))
	require.NoError(t, err)
	note := decode[noteResponse](t, resp)
	require.NotNil(t, note.Image)

	resp, err = app.anon().R().Get("/uploads/" + *note.Image)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	cfg, format, err := image.DecodeConfig(bytes.NewReader(resp.Body()))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, cfg.Width)

	resp, err = root.R().
		SetFileReader("imagem", "junk.png", bytes.NewReader([]byte("not an image"))).
		Post("/notas/" + id(noteID) + "/imagem")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())

	huge := pngBytes(t)
	binary.BigEndian.PutUint32(huge[16:20], 20000)
	binary.BigEndian.PutUint32(huge[20:24], 20000)
	binary.BigEndian.PutUint32(huge[29:33], crc32.ChecksumIEEE(huge[12:29]))
	resp, err = root.R().
		SetFileReader("imagem", "huge.png", bytes.NewReader(huge)).
		Post("/notas/" + id(noteID) + "/imagem")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, "Arquivo de imagem inválido.", decode[messageResponse](t, resp).Message)

	resp, err = root.R().SetBody(map[string]string{"status": "encerrada"}).Put("/notas/" + id(noteID) + "/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	resp, err = root.R().
		SetFileReader("imagem", "lamp.png", bytes.NewReader(pngBytes(t))).
		Post("/notas/" + id(noteID) + "/imagem")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestExportOrders(t *testing.T) {
	app := newTestApp(t)
	root := app.login(t, "root", "rootpw")
	app.register(t, root, "R1", "morador")
	resident := app.login(t, "R1", "secret")

	resp, err := root.R().Get("/ordens/relatorio")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, reports.ContentType, resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(resp.Body(), []byte("PK")))

	resp, err = resident.R().Get("/ordens/relatorio")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	resp, err := app.anon().R().Get("/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}
