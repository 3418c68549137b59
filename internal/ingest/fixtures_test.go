package ingest

import "strings"

const sampleMatchID = "1348651"

const sampleDeliveries = "\ufeffmatch_id,season,start_date,venue,innings,ball,batting_team,bowling_team,striker,non_striker,bowler,runs_off_bat,extras,wides,noballs,byes,legbyes,penalty,wicket_type,player_dismissed,other_wicket_type,other_player_dismissed\n" +
	"1348651,2022/23,2023-03-04,\"Dr DY Patil Sports Academy, Mumbai\",1,0.1,Mumbai Indians,Gujarat Giants,YH Bhatia,HK Matthews,A Gardner,0,0,,,,,,,,,\n" +
	"1348651,2022/23,2023-03-04,\"Dr DY Patil Sports Academy, Mumbai\",1,0.2,Mumbai Indians,Gujarat Giants,YH Bhatia,HK Matthews,A Gardner,4,0,,,,,,,,,\n" +
	"1348651,2022/23,2023-03-04,\"Dr DY Patil Sports Academy, Mumbai\",1,0.3,Mumbai Indians,Gujarat Giants,YH Bhatia,HK Matthews,A Gardner,0,1,1,,,,,,,,\n" +
	"1348651,2022/23,2023-03-04,\"Dr DY Patil Sports Academy, Mumbai\",1,0.4,Mumbai Indians,Gujarat Giants,YH Bhatia,HK Matthews,A Gardner,0,0,,,,,,caught,YH Bhatia,,\n" +
	"1348651,2022/23,2023-03-04,\"Dr DY Patil Sports Academy, Mumbai\",2,0.1,Gujarat Giants,Mumbai Indians,B Mooney,S Meghana,NR Sciver,1,0,,,,,,,,,\n"

const sampleInfo = `version,2.2.0
info,balls_per_over,6
info,team,Mumbai Indians
info,team,Gujarat Giants
info,gender,female
info,season,2022/23
info,date,2023/03/04
info,event,Women's Premier League
info,match_number,1
info,venue,"Dr DY Patil Sports Academy, Mumbai"
info,city,Mumbai
info,toss_winner,Gujarat Giants
info,toss_decision,field
info,player_of_match,HK Matthews
info,umpire,J Madanagopal
info,umpire,Vrinda Rathi
info,match_referee,GS Lakshmi
info,winner,Mumbai Indians
info,winner_runs,143
info,player,Mumbai Indians,YH Bhatia
info,player,Mumbai Indians,HK Matthews
info,player,Gujarat Giants,B Mooney
info,player,Gujarat Giants,A Gardner
info,registry,people,YH Bhatia,0a1b2c3d
info,registry,people,HK Matthews,1b2c3d4e
`

func sampleMatch() Match {
	file, err := ParseDeliveries(strings.NewReader(sampleDeliveries), sampleMatchID)
	if err != nil {
		panic(err)
	}
	info, err := ParseInfo(strings.NewReader(sampleInfo))
	if err != nil {
		panic(err)
	}
	m, err := BuildMatch(sampleMatchID, file, info)
	if err != nil {
		panic(err)
	}
	return m
}
