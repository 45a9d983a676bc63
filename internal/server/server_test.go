package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"netrailsim/internal/model"
	"netrailsim/internal/network"
	"netrailsim/internal/policy"
	"netrailsim/internal/server"
	"netrailsim/internal/sim"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func buildLineNetwork(t *testing.T) *network.Network {
	t.Helper()
	nodes := []network.NodeRecord{
		{UserID: 1, X: 0, Y: 0, IsTerminal: true},
		{UserID: 2, X: 1000, Y: 0, IsTerminal: true},
	}
	links := []network.LinkRecord{
		{UserID: 101, FromNodeUserID: 1, ToNodeUserID: 2, Length: 1000, FreeFlowSpeed: 20, Directions: 1},
	}
	net, err := network.NewNetwork(nodes, links)
	require.NoError(t, err)
	return net
}

func buildDieselTrain(t *testing.T) *model.Train {
	t.Helper()
	spec := model.TrainSpec{
		UserID:              1,
		FrictionCoefficient: 0.3,
		Locomotives: []model.LocomotiveSpec{{
			Count: 1, PowerType: model.Diesel, MaxPowerKW: 2000, TransmissionEff: 0.9,
			LengthM: 20, DragCoef: 0.8, FrontalAreaSqFt: 120, WeightTons: 120, Axles: 6,
			NotchCount: 8, MaxAchievableNotch: 8, AuxLoadKW: 10,
			Tank: &model.TankSpec{MaxCapacityL: 10000, MinDoD: 0.05, InitialFraction: 1},
		}},
		Cars: []model.CarSpec{{
			Count: 1, Type: model.Cargo, LengthM: 15, DragCoef: 0.9, FrontalAreaSqFt: 100,
			CurrentWeightTons: 80, EmptyWeightTons: 20, Axles: 4,
		}},
	}
	tr, err := model.BuildTrain([]int{1, 2}, spec)
	require.NoError(t, err)
	return tr
}

func TestServer_HandleNetwork(t *testing.T) {
	net := buildLineNetwork(t)
	s := sim.NewSimulator(net, nil, policy.Constant{}, 1.0)
	srv := server.New(net, s, func() {}, server.Options{})

	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/network")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got network.Network
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
}

func TestServer_HandleControl_UnknownActionRejected(t *testing.T) {
	net := buildLineNetwork(t)
	s := sim.NewSimulator(net, nil, policy.Constant{}, 1.0)
	srv := server.New(net, s, func() {}, server.Options{})

	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/control", "application/json", strings.NewReader(`{"action":"teleport"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_HandleControl_CancelInvokesCancelFunc(t *testing.T) {
	net := buildLineNetwork(t)
	s := sim.NewSimulator(net, nil, policy.Constant{}, 1.0)

	cancelled := make(chan struct{})
	srv := server.New(net, s, func() { close(cancelled) }, server.Options{})

	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/control", "application/json", strings.NewReader(`{"action":"cancel"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("cancel action did not invoke the server's cancel func")
	}
}

func TestServer_HandleStream_DeliversDoneEnvelope(t *testing.T) {
	net := buildLineNetwork(t)
	tr := buildDieselTrain(t)
	s := sim.NewSimulator(net, []*model.Train{tr}, policy.Constant{}, 1.0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := server.New(net, s, cancel, server.Options{})
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	go func() { _ = s.Run(ctx) }()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(8*time.Second)))

	sawDone := false
	for !sawDone {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var env struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(msg, &env))
		if env.Type == "done" {
			sawDone = true
		}
	}
}
